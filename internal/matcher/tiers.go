package matcher

import (
	"fmt"
	"math"
	"strings"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/fuzzy"
)

// Hit is a tier's resolved account for a transaction.
type Hit struct {
	Account    domain.Account
	Confidence int
	RuleID     string
	Reason     string
}

// Tier is one matching strategy. Tiers are attempted in order and the first
// hit wins, so a later tier never overrides an earlier one.
type Tier interface {
	Source() domain.MappingSource
	Match(tx domain.BankTransaction, snap *Snapshot) (*Hit, bool)
}

// ExactTier matches literal rules against the lower-cased description.
type ExactTier struct{}

func (ExactTier) Source() domain.MappingSource { return domain.SourceExactMatch }

func (ExactTier) Match(tx domain.BankTransaction, snap *Snapshot) (*Hit, bool) {
	desc := strings.ToLower(strings.TrimSpace(tx.Description))
	for _, cr := range snap.literal {
		var ok bool
		switch cr.rule.PatternType {
		case domain.PatternContains:
			ok = strings.Contains(desc, cr.pattern)
		case domain.PatternStartsWith:
			ok = strings.HasPrefix(desc, cr.pattern)
		case domain.PatternEndsWith:
			ok = strings.HasSuffix(desc, cr.pattern)
		}
		if ok {
			return &Hit{
				Account:    cr.account,
				Confidence: 100,
				RuleID:     cr.rule.ID,
				Reason:     fmt.Sprintf("rule %s: description %s %q", cr.rule.ID, verb(cr.rule.PatternType), cr.rule.Pattern),
			}, true
		}
	}
	return nil, false
}

func verb(p domain.PatternType) string {
	switch p {
	case domain.PatternStartsWith:
		return "starts with"
	case domain.PatternEndsWith:
		return "ends with"
	}
	return "contains"
}

// PatternTier applies case-insensitive regex rules to the raw description.
type PatternTier struct {
	ProvenMatchCount int
}

func (PatternTier) Source() domain.MappingSource { return domain.SourcePatternMatch }

func (t PatternTier) Match(tx domain.BankTransaction, snap *Snapshot) (*Hit, bool) {
	for _, cr := range snap.regex {
		if !cr.re.MatchString(tx.Description) {
			continue
		}
		conf := 90
		reason := fmt.Sprintf("rule %s: description matches /%s/", cr.rule.ID, cr.rule.Pattern)
		if cr.rule.Metadata.MatchCount > t.ProvenMatchCount {
			conf = 95
			reason += fmt.Sprintf(", proven by %d prior matches", cr.rule.Metadata.MatchCount)
		}
		return &Hit{Account: cr.account, Confidence: conf, RuleID: cr.rule.ID, Reason: reason}, true
	}
	return nil, false
}

// FuzzyTier scores literal rule patterns by normalized edit distance and keeps
// the single best candidate at or above the threshold.
type FuzzyTier struct {
	Threshold float64
}

func (FuzzyTier) Source() domain.MappingSource { return domain.SourceFuzzyMatch }

func (t FuzzyTier) Match(tx domain.BankTransaction, snap *Snapshot) (*Hit, bool) {
	var best *compiledRule
	bestSim := 0.0
	for i := range snap.literal {
		cr := &snap.literal[i]
		sim := fuzzy.Similarity(tx.Description, cr.pattern)
		if sim < t.Threshold {
			continue
		}
		if best == nil || sim > bestSim {
			best, bestSim = cr, sim
		}
	}
	if best == nil {
		return nil, false
	}
	return &Hit{
		Account:    best.account,
		Confidence: int(math.Round(bestSim * 100)),
		RuleID:     best.rule.ID,
		Reason:     fmt.Sprintf("rule %s: description resembles %q (similarity %.2f)", best.rule.ID, best.rule.Pattern, bestSim),
	}, true
}

// CategoryTier maps the declared transaction category through a static table.
type CategoryTier struct {
	cfg Config
}

func (CategoryTier) Source() domain.MappingSource { return domain.SourceCategoryMatch }

func (t CategoryTier) Match(tx domain.BankTransaction, snap *Snapshot) (*Hit, bool) {
	code, ok := t.cfg.categoryCode(tx.Category)
	if !ok {
		return nil, false
	}
	account, ok := snap.AccountByCode(code)
	if !ok {
		return nil, false
	}
	return &Hit{
		Account:    account,
		Confidence: 70,
		Reason:     fmt.Sprintf("category %q maps to account %s", tx.Category, code),
	}, true
}

// Tiers returns the enabled tiers in precedence order.
func (c Config) Tiers() []Tier {
	var tiers []Tier
	if c.EnableExact {
		tiers = append(tiers, ExactTier{})
	}
	if c.EnablePattern {
		tiers = append(tiers, PatternTier{ProvenMatchCount: c.ProvenRuleMatchCount})
	}
	if c.EnableFuzzy {
		tiers = append(tiers, FuzzyTier{Threshold: c.FuzzyThreshold})
	}
	if c.EnableCategory {
		tiers = append(tiers, CategoryTier{cfg: c})
	}
	return tiers
}
