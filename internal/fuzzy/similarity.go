// Package fuzzy holds the string scoring used by entity resolution and the
// fuzzy rule tier: bounded edit distance, token windows and key-term
// extraction from free-text bank descriptions.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize lower-cases s, turns punctuation into spaces and collapses runs
// of whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits a normalized string into words.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Ratio is 1 - distance/longest, in [0, 1]. Two empty strings score 1.
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// TokenOverlap is the share of needle tokens that appear in haystack.
func TokenOverlap(haystack, needle []string) float64 {
	if len(needle) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(haystack))
	for _, t := range haystack {
		set[t] = struct{}{}
	}
	hits := 0
	for _, t := range needle {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(needle))
}

// WindowScore is the best comparison of a target phrase against a run of
// consecutive text tokens.
type WindowScore struct {
	Window   string
	Distance int
	Ratio    float64
}

// BestWindow slides a window the size of the target over the text tokens and
// returns the window with the smallest edit distance. Windows one token
// shorter and longer are tried too so that split or joined words still
// line up. Ties keep the earliest window.
func BestWindow(text []string, target string) WindowScore {
	target = Normalize(target)
	targetTokens := strings.Fields(target)
	if len(targetTokens) == 0 || len(text) == 0 {
		return WindowScore{Distance: len([]rune(target)), Ratio: 0}
	}

	best := WindowScore{Distance: -1}
	for _, size := range windowSizes(len(targetTokens), len(text)) {
		for start := 0; start+size <= len(text); start++ {
			window := strings.Join(text[start:start+size], " ")
			d := Levenshtein(window, target)
			if best.Distance < 0 || d < best.Distance {
				best = WindowScore{Window: window, Distance: d, Ratio: Ratio(window, target)}
			}
			if d == 0 {
				return best
			}
		}
	}
	return best
}

func windowSizes(n, limit int) []int {
	sizes := []int{n}
	if n-1 >= 1 {
		sizes = append(sizes, n-1)
	}
	sizes = append(sizes, n+1)

	out := sizes[:0]
	for _, s := range sizes {
		if s <= limit {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, limit)
	}
	return out
}

// Similarity compares a description with a pattern: the best window ratio,
// or the plain ratio of the whole strings when that is higher.
func Similarity(description, pattern string) float64 {
	nd, np := Normalize(description), Normalize(pattern)
	if nd == "" || np == "" {
		return 0
	}
	whole := Ratio(nd, np)
	window := BestWindow(strings.Fields(nd), np).Ratio
	return max(whole, window)
}

var (
	datePattern = regexp.MustCompile(`\b\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}\b`)
	timePattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`)
	monthDay    = regexp.MustCompile(`(?i)\b\d{1,2}\s?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
)

// boilerplate tokens carry no counterparty information in bank descriptions.
var boilerplate = map[string]struct{}{
	"payment": {}, "pmt": {}, "paid": {}, "to": {}, "from": {}, "ref": {}, "reference": {},
	"eft": {}, "transfer": {}, "trf": {}, "xfer": {}, "deposit": {}, "dep": {},
	"debit": {}, "credit": {}, "order": {}, "pos": {}, "purchase": {}, "card": {},
	"cr": {}, "dr": {}, "int": {}, "the": {}, "of": {}, "for": {}, "and": {},
	"acc": {}, "account": {}, "inv": {}, "invoice": {}, "bill": {}, "via": {},
	"online": {}, "internet": {}, "banking": {}, "immediate": {}, "instant": {},
	"fee": {}, "charge": {}, "txn": {}, "trx": {}, "no": {}, "nr": {},
}

// IsBoilerplate reports whether a normalized token is a stop word for
// bank descriptions.
func IsBoilerplate(token string) bool {
	_, ok := boilerplate[token]
	return ok
}

// ExtractKeyTerms strips dates, times, numbers, reference codes and
// boilerplate from a description and returns the remaining terms in order.
func ExtractKeyTerms(description string) []string {
	s := datePattern.ReplaceAllString(description, " ")
	s = timePattern.ReplaceAllString(s, " ")
	s = monthDay.ReplaceAllString(s, " ")

	var terms []string
	for _, tok := range Tokens(s) {
		if len([]rune(tok)) < 2 || hasDigit(tok) || IsBoilerplate(tok) {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
