package matcher

import (
	"fmt"
	"strings"

	"ledger-recon/internal/domain"
)

// Config enumerates every default the pipeline uses. It is resolved once per
// batch and never re-derived per transaction.
type Config struct {
	AutoMapThreshold     int               `yaml:"auto_map_threshold"`
	ReviewThreshold      int               `yaml:"review_threshold"`
	EnableExact          bool              `yaml:"enable_exact"`
	EnablePattern        bool              `yaml:"enable_pattern"`
	EnableFuzzy          bool              `yaml:"enable_fuzzy"`
	EnableCategory       bool              `yaml:"enable_category"`
	FuzzyThreshold       float64           `yaml:"fuzzy_threshold"`
	ProvenRuleMatchCount int               `yaml:"proven_rule_match_count"`
	BankAccountPrefix    string            `yaml:"bank_account_prefix"`
	Workers              int               `yaml:"workers"`
	EscalationCostPerTx  float64           `yaml:"escalation_cost_per_tx"`
	CategoryAccounts     map[string]string `yaml:"category_accounts"`
}

// DefaultCategoryAccounts maps declared bank categories to default account codes.
var DefaultCategoryAccounts = map[string]string{
	"bank charges":      "6400",
	"bank fees":         "6400",
	"utilities":         "6100",
	"electricity":       "6100",
	"water":             "6100",
	"telephone":         "6150",
	"internet":          "6150",
	"fuel":              "6300",
	"travel":            "6350",
	"insurance":         "6500",
	"rent":              "6600",
	"salaries":          "6700",
	"interest paid":     "6800",
	"sales":             "4000",
	"interest received": "4200",
}

func DefaultConfig() Config {
	categories := make(map[string]string, len(DefaultCategoryAccounts))
	for k, v := range DefaultCategoryAccounts {
		categories[k] = v
	}
	return Config{
		AutoMapThreshold:     85,
		ReviewThreshold:      60,
		EnableExact:          true,
		EnablePattern:        true,
		EnableFuzzy:          true,
		EnableCategory:       true,
		FuzzyThreshold:       0.8,
		ProvenRuleMatchCount: 10,
		BankAccountPrefix:    "1",
		Workers:              4,
		EscalationCostPerTx:  0.002,
		CategoryAccounts:     categories,
	}
}

// Validate checks threshold ordering and ranges.
func (c Config) Validate() error {
	if c.ReviewThreshold < 0 || c.AutoMapThreshold > 100 {
		return fmt.Errorf("thresholds must be within 0..100")
	}
	if c.ReviewThreshold > c.AutoMapThreshold {
		return fmt.Errorf("review threshold %d exceeds auto-map threshold %d", c.ReviewThreshold, c.AutoMapThreshold)
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be within (0, 1], got %v", c.FuzzyThreshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.EscalationCostPerTx < 0 {
		return fmt.Errorf("escalation cost must not be negative")
	}
	return nil
}

// Route maps a confidence onto a routing decision.
func (c Config) Route(confidence int) domain.Decision {
	switch {
	case confidence >= c.AutoMapThreshold:
		return domain.DecisionAutoMapped
	case confidence >= c.ReviewThreshold:
		return domain.DecisionNeedsReview
	}
	return domain.DecisionNeedsEscalation
}

func (c Config) categoryCode(category string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(category))
	if key == "" {
		return "", false
	}
	code, ok := c.CategoryAccounts[key]
	return code, ok
}
