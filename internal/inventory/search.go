// internal/inventory/search.go
package inventory

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"dealerdesk/internal/knowledge"
	"dealerdesk/internal/models"
)

// DefaultMaxResults bounds listings per reply so responses stay concise.
const DefaultMaxResults = 5

// Shopping cue words that mark a message as an inventory query.
var shoppingCues = []string{
	"car", "cars", "vehicle", "buy", "looking for", "available", "inventory",
	"price", "budget", "under", "model",
}

var budgetCues = []string{
	"under", "below", "within", "budget", "price", "around", "max", "upto", "up to",
}

var numberPattern = regexp.MustCompile(`(\d[\d,]*\.?\d*)\s*(lakh|lac|crore|million|m|k)?\b`)

// Query is the structured form of a free-text inventory request.
type Query struct {
	Make         string
	Model        string
	Year         int
	PriceCeiling float64
}

// Searcher filters and ranks a car catalog against free-text queries.
// Known makes/models are derived from the catalog itself, so a refresh
// keeps matching in sync with stock.
type Searcher struct {
	maxResults int
}

func NewSearcher(maxResults int) *Searcher {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Searcher{maxResults: maxResults}
}

// HasShoppingCues reports whether the message looks like a car-shopping
// request, either via cue words or a known make/model mention.
func HasShoppingCues(message string, catalog []models.CarListing) bool {
	normalized := knowledge.Normalize(message)
	for _, cue := range shoppingCues {
		if strings.Contains(normalized, cue) {
			return true
		}
	}
	for _, c := range catalog {
		if strings.Contains(normalized, strings.ToLower(c.Make)) ||
			strings.Contains(normalized, strings.ToLower(c.Model)) {
			return true
		}
	}
	return false
}

// Search returns up to maxResults available listings matching the query,
// best first. Empty input or no matches yields an empty slice.
func (s *Searcher) Search(message string, catalog []models.CarListing) []models.CarListing {
	if len(catalog) == 0 {
		return nil
	}
	q := ParseQuery(message, catalog)

	type scored struct {
		car  models.CarListing
		rank rankKey
	}
	var matches []scored
	for _, c := range catalog {
		if !c.Available {
			continue
		}
		if !q.matches(c) {
			continue
		}
		matches = append(matches, scored{car: c, rank: q.rank(c)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].rank.less(matches[j].rank)
	})

	out := make([]models.CarListing, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.car)
		if len(out) == s.maxResults {
			break
		}
	}
	return out
}

// ParseQuery extracts make/model, year and price ceiling tokens from a
// free-text message, using the catalog as the vocabulary of known
// makes and models.
func ParseQuery(message string, catalog []models.CarListing) Query {
	normalized := knowledge.Normalize(message)
	q := Query{}

	for _, c := range catalog {
		if q.Make == "" && strings.Contains(normalized, strings.ToLower(c.Make)) {
			q.Make = c.Make
		}
		if q.Model == "" && strings.Contains(normalized, strings.ToLower(c.Model)) {
			q.Model = c.Model
		}
	}

	q.Year = parseYear(normalized)
	// Price parsing runs on the raw lowercased text: normalization would
	// split "2,000,000" into separate tokens.
	q.PriceCeiling = parsePriceCeiling(strings.ToLower(message))
	return q
}

func parseYear(normalized string) int {
	maxYear := time.Now().Year() + 1
	for _, tok := range strings.Fields(normalized) {
		if len(tok) != 4 {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if n >= 1990 && n <= maxYear {
			return n
		}
	}
	return 0
}

// parsePriceCeiling finds a numeric token near a budget cue word and
// applies magnitude suffixes (k, lakh, million).
func parsePriceCeiling(lowered string) float64 {
	hasCue := false
	for _, cue := range budgetCues {
		if strings.Contains(lowered, cue) {
			hasCue = true
			break
		}
	}
	if !hasCue {
		return 0
	}

	for _, m := range numberPattern.FindAllStringSubmatch(lowered, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		value *= magnitude(m[2])
		// Plain 4-digit tokens in year range are years, not prices.
		if m[2] == "" && value >= 1990 && value <= float64(time.Now().Year()+1) {
			continue
		}
		if value >= 1000 {
			return value
		}
	}
	return 0
}

func magnitude(suffix string) float64 {
	switch suffix {
	case "k":
		return 1_000
	case "lakh", "lac":
		return 100_000
	case "m", "million":
		return 1_000_000
	case "crore":
		return 10_000_000
	default:
		return 1
	}
}

func (q Query) matches(c models.CarListing) bool {
	if q.Make != "" || q.Model != "" {
		makeHit := q.Make != "" && strings.EqualFold(q.Make, c.Make)
		modelHit := q.Model != "" && strings.EqualFold(q.Model, c.Model)
		if !makeHit && !modelHit {
			return false
		}
	} else if q.PriceCeiling > 0 && q.Year == 0 {
		// Pure budget query: filter strictly by price.
		return c.Price <= q.PriceCeiling
	}
	return true
}

// rankKey orders matches: exact make+model first, then within-budget
// before over-budget (cheapest closest to the ceiling first), then year
// proximity, then price.
type rankKey struct {
	exactMatch   bool
	withinBudget bool
	budgetGap    float64
	yearDistance int
	price        float64
}

func (q Query) rank(c models.CarListing) rankKey {
	k := rankKey{
		exactMatch: q.Make != "" && q.Model != "" &&
			strings.EqualFold(q.Make, c.Make) && strings.EqualFold(q.Model, c.Model),
		withinBudget: true,
		price:        c.Price,
	}
	if q.PriceCeiling > 0 {
		k.withinBudget = c.Price <= q.PriceCeiling
		k.budgetGap = math.Abs(q.PriceCeiling - c.Price)
	}
	if q.Year > 0 {
		k.yearDistance = int(math.Abs(float64(q.Year - c.Year)))
	}
	return k
}

func (a rankKey) less(b rankKey) bool {
	if a.exactMatch != b.exactMatch {
		return a.exactMatch
	}
	if a.withinBudget != b.withinBudget {
		return a.withinBudget
	}
	if a.budgetGap != b.budgetGap {
		return a.budgetGap < b.budgetGap
	}
	if a.yearDistance != b.yearDistance {
		return a.yearDistance < b.yearDistance
	}
	return a.price < b.price
}
