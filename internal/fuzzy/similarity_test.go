package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "acme traders pty ltd", Normalize("  ACME-Traders (Pty) Ltd. "))
	assert.Equal(t, "", Normalize("***"))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"eskom", "eskom", 0},
		{"eskomm", "eskom", 1},
		{"flaw", "lawn", 2},
		{"café", "cafe", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("same", "same"))
	assert.InDelta(t, 0.8333, Ratio("eskomm", "eskom"), 0.001)
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, TokenOverlap([]string{"acme", "traders", "cape"}, []string{"acme", "traders"}))
	assert.Equal(t, 0.5, TokenOverlap([]string{"acme"}, []string{"acme", "traders"}))
	assert.Equal(t, 0.0, TokenOverlap([]string{"acme"}, nil))
}

func TestBestWindow(t *testing.T) {
	text := []string{"acme", "traders", "cape", "town"}

	exact := BestWindow(text, "Acme Traders")
	assert.Equal(t, 0, exact.Distance)
	assert.Equal(t, "acme traders", exact.Window)
	assert.Equal(t, 1.0, exact.Ratio)

	typo := BestWindow([]string{"acme", "tradres"}, "acme traders")
	assert.Equal(t, 2, typo.Distance)
	assert.Greater(t, typo.Ratio, 0.8)

	joined := BestWindow([]string{"city", "power"}, "citypower")
	assert.Equal(t, 1, joined.Distance)

	empty := BestWindow(nil, "acme")
	assert.Equal(t, 0.0, empty.Ratio)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 0.8333, Similarity("ESKOMM PREPAID", "eskom"), 0.001)
	assert.Equal(t, 1.0, Similarity("Monthly NETFLIX.COM subscription", "netflix com"))
	assert.Less(t, Similarity("FNB Airtime Purchase", "eskom"), 0.5)
	assert.Equal(t, 0.0, Similarity("", "eskom"))
}

func TestExtractKeyTerms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"strips boilerplate and refs", "Payment from ACME TRADERS ref 12345", []string{"acme", "traders"}},
		{"strips dates and times", "EFT 2024-01-15 10:32 City Power", []string{"city", "power"}},
		{"strips short month dates", "POS Purchase 12 Jan Woolworths", []string{"woolworths"}},
		{"drops mixed codes", "FNB Airtime Purchase 082991234", []string{"fnb", "airtime"}},
		{"nothing left", "Payment 123", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeyTerms(tt.in))
		})
	}
}
