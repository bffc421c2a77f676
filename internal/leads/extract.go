// internal/leads/extract.go
package leads

import (
	"regexp"
	"strconv"
	"strings"

	"dealerdesk/internal/models"
)

// Extraction rules are independent per field: a malformed candidate for
// one field never blocks another. Each rule returns its zero value when
// nothing valid is found.

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	digitRun     = regexp.MustCompile(`[\d][\d\s\-().]*[\d]`)
	// Case-insensitivity covers the cue only; the captured tokens must
	// be capitalized or they are not a name.
	namePattern = regexp.MustCompile(`\b(?i:my name is|i am|i'm|this is)\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)?)`)
	numberToken  = regexp.MustCompile(`(\d[\d,]*\.?\d*)\s*(lakh|lac|crore|million|m|k)?\b`)
	rangeToken   = regexp.MustCompile(`(?i)between\s+(\d[\d,]*\.?\d*)\s*(lakh|lac|crore|million|m|k)?\s+and\s+(\d[\d,]*\.?\d*)\s*(lakh|lac|crore|million|m|k)?`)
)

var budgetCues = []string{"budget", "under", "below", "around", "spend", "afford", "price", "upto", "up to", "within", "max"}

// Partial is the outcome of one extraction pass; every field optional.
type Partial struct {
	Name   string
	Phone  string
	Email  string
	Budget *models.Budget
}

// Empty reports whether the pass found nothing.
func (p Partial) Empty() bool {
	return p.Name == "" && p.Phone == "" && p.Email == "" && p.Budget == nil
}

// Extract scans a single message for lead signals.
func Extract(message string) Partial {
	return Partial{
		Name:   extractName(message),
		Phone:  extractPhone(message),
		Email:  extractEmail(message),
		Budget: extractBudget(message),
	}
}

// extractPhone finds the longest contiguous digit run of length >= 7
// after stripping separators; the first occurrence wins on ties.
func extractPhone(message string) string {
	best := ""
	for _, candidate := range digitRun.FindAllString(message, -1) {
		digits := stripNonDigits(candidate)
		if !validPhone(digits) {
			continue
		}
		if len(digits) > len(best) {
			best = digits
		}
	}
	return best
}

// validPhone checks a digit run against the local numbering pattern:
// 92XXXXXXXXXX international, 0XXXXXXXXXX(X) national, or a bare
// seven-digit local number.
func validPhone(digits string) bool {
	switch {
	case strings.HasPrefix(digits, "92"):
		return len(digits) == 12
	case strings.HasPrefix(digits, "0"):
		return len(digits) == 10 || len(digits) == 11
	default:
		return len(digits) == 7
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractEmail returns the first email-shaped token.
func extractEmail(message string) string {
	return emailPattern.FindString(message)
}

// extractName only fires after an explicit self-introduction cue; a
// capitalized token elsewhere in the text is never guessed to be a name.
func extractName(message string) string {
	m := namePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractBudget finds a numeric token near a budget cue, or a
// "between X and Y" range anywhere.
func extractBudget(message string) *models.Budget {
	lowered := strings.ToLower(message)

	if m := rangeToken.FindStringSubmatch(lowered); m != nil {
		lo := parseAmount(m[1], m[2])
		hi := parseAmount(m[3], m[4])
		if lo > 0 && hi > 0 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return &models.Budget{Min: lo, Max: hi}
		}
	}

	hasCue := false
	for _, cue := range budgetCues {
		if strings.Contains(lowered, cue) {
			hasCue = true
			break
		}
	}
	if !hasCue {
		return nil
	}

	for _, m := range numberToken.FindAllStringSubmatch(lowered, -1) {
		value := parseAmount(m[1], m[2])
		if value < 1000 {
			continue
		}
		// Phone-number digit runs are not budgets.
		if m[2] == "" && len(stripNonDigits(m[1])) >= 7 && !strings.Contains(m[1], ",") {
			continue
		}
		return &models.Budget{Min: value, Max: value}
	}
	return nil
}

func parseAmount(number, suffix string) float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch suffix {
	case "k":
		value *= 1_000
	case "lakh", "lac":
		value *= 100_000
	case "m", "million":
		value *= 1_000_000
	case "crore":
		value *= 10_000_000
	}
	return value
}

// Merge applies a partial onto a lead under the monotonic policy: a set
// field is only replaced by a more specific value of the same kind and
// is never cleared. Returns true when anything changed.
func Merge(lead *models.Lead, p Partial) bool {
	changed := false

	if p.Name != "" && moreSpecific(p.Name, lead.Name) {
		lead.Name = p.Name
		changed = true
	}
	if p.Phone != "" && (lead.Phone == "" || len(p.Phone) >= len(lead.Phone)) {
		if p.Phone != lead.Phone {
			lead.Phone = p.Phone
			changed = true
		}
	}
	if p.Email != "" && lead.Email == "" {
		lead.Email = p.Email
		changed = true
	}
	if p.Budget != nil {
		if lead.Budget == nil || narrower(*p.Budget, *lead.Budget) {
			b := *p.Budget
			lead.Budget = &b
			changed = true
		}
	}

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
		changed = true
	}
	return changed
}

// AppendInterest records a free-text interest note; notes are
// append-only and deduplicated.
func AppendInterest(lead *models.Lead, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	for _, existing := range lead.Interest {
		if existing == note {
			return
		}
	}
	lead.Interest = append(lead.Interest, note)
}

func moreSpecific(candidate, existing string) bool {
	if existing == "" {
		return true
	}
	// A longer full name replaces a shorter one; same length keeps the
	// existing value.
	return len(candidate) > len(existing)
}

// narrower prefers a range over no range only when it is tighter, and a
// newer point value over an older point value.
func narrower(candidate, existing models.Budget) bool {
	if !existing.IsRange() && !candidate.IsRange() {
		return candidate.Max != existing.Max
	}
	return candidate.Max-candidate.Min < existing.Max-existing.Min
}
