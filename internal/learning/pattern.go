// Package learning turns approved mappings into mapping rules so the same
// counterparty is matched by the exact tier next time.
package learning

import (
	"strings"
	"unicode"

	"ledger-recon/internal/fuzzy"
)

// MaxPatternTokens bounds the length of a derived pattern.
const MaxPatternTokens = 3

// DerivePattern extracts a stable contains-pattern from a bank description.
// Leading boilerplate such as "payment to" or "debit order" is skipped and
// the next run of meaningful words is kept, stopping at the first reference
// number, date or time. The result is a substring of the lower-cased
// description, so the learned rule matches the description it came from.
func DerivePattern(description string) string {
	fields := strings.Fields(strings.ToLower(description))

	start := 0
	for start < len(fields) && (isNoise(fields[start]) || fuzzy.IsBoilerplate(fuzzy.Normalize(fields[start]))) {
		start++
	}

	var kept []string
	for _, f := range fields[start:] {
		if len(kept) == MaxPatternTokens || isNoise(f) {
			break
		}
		kept = append(kept, f)
	}

	for len(kept) > 0 && fuzzy.IsBoilerplate(fuzzy.Normalize(kept[len(kept)-1])) {
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 {
		return ""
	}

	last := len(kept) - 1
	kept[last] = strings.TrimRightFunc(kept[last], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(kept, " ")
}

func isNoise(token string) bool {
	norm := fuzzy.Normalize(token)
	if len([]rune(norm)) < 2 {
		return true
	}
	for _, r := range norm {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
