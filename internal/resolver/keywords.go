package resolver

// typeKeywords lists description terms that hint at a counterparty class.
var typeKeywords = map[string][]string{
	"tax-authority": {"sars", "tax", "vat", "paye", "efiling", "revenue", "hmrc", "irs"},
	"utility":       {"electricity", "water", "prepaid", "municipal", "municipality", "rates", "gas", "utility", "eskom"},
	"statutory":     {"uif", "sdl", "coida", "compensation", "levy", "statutory", "council"},
}

// keywordBoost returns the configured boost when any keyword for the entity
// type appears in the description tokens.
func keywordBoost(entityType string, tokens []string, boost float64) float64 {
	keywords, ok := typeKeywords[entityType]
	if !ok || boost <= 0 {
		return 0
	}
	for _, tok := range tokens {
		for _, kw := range keywords {
			if tok == kw {
				return boost
			}
		}
	}
	return 0
}
