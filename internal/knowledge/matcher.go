// internal/knowledge/matcher.go
package knowledge

import (
	"strings"
	"unicode"
)

// Matching thresholds. A topic wins with at least one full trigger
// phrase contained in the query, or a token overlap of 0.3.
const (
	phraseScore      = 1.0
	overlapThreshold = 0.3
)

// Match is a confident knowledge-base hit.
type Match struct {
	TopicID    string
	Answer     string
	Confidence float64
}

// Matcher scores queries against a fixed topic table. Pure and
// deterministic: the same normalized query always yields the same
// topic and confidence.
type Matcher struct {
	topics []Topic
}

func NewMatcher(topics []Topic) *Matcher {
	return &Matcher{topics: topics}
}

// NewDefaultMatcher builds a matcher over the built-in topic table.
func NewDefaultMatcher() *Matcher {
	return NewMatcher(Topics())
}

// Match returns the best-scoring topic for the query, or false when no
// topic clears the threshold. Ties break by registration order.
func (m *Matcher) Match(query string) (Match, bool) {
	normalized := Normalize(query)
	if normalized == "" {
		return Match{}, false
	}
	queryTokens := tokenSet(normalized)

	best := Match{}
	found := false
	for _, t := range m.topics {
		score := scoreTopic(normalized, queryTokens, t)
		if score >= overlapThreshold && score > best.Confidence {
			best = Match{TopicID: t.ID, Answer: t.Answer, Confidence: score}
			found = true
		}
	}
	return best, found
}

// Menu returns the topic menu used in fallback replies.
func (m *Matcher) Menu() string {
	var b strings.Builder
	b.WriteString("I can help with: ")
	for i, t := range m.topics {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.ID)
	}
	b.WriteString(".")
	return b.String()
}

func scoreTopic(normalized string, queryTokens map[string]bool, t Topic) float64 {
	// Full trigger phrase containment is a confident hit.
	for _, trigger := range t.Triggers {
		if strings.Contains(normalized, trigger) {
			return phraseScore
		}
	}

	// Otherwise fall back to token-set overlap against all triggers.
	triggerTokens := map[string]bool{}
	for _, trigger := range t.Triggers {
		for tok := range tokenSet(trigger) {
			triggerTokens[tok] = true
		}
	}
	if len(queryTokens) == 0 || len(triggerTokens) == 0 {
		return 0
	}
	matched := 0
	for tok := range queryTokens {
		if triggerTokens[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == '-' || r == '\'':
			// Keep intra-word marks so "trade-in" survives normalization.
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}
