package matcher

import (
	"regexp"
	"sort"
	"strings"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

type compiledRule struct {
	rule    domain.MappingRule
	account domain.Account
	pattern string
	re      *regexp.Regexp
}

// Snapshot is the immutable view of a tenant's rules and chart of accounts
// that one batch is classified against.
type Snapshot struct {
	TenantID string

	literal   []compiledRule
	regex     []compiledRule
	accounts  map[string]domain.Account
	byCode    map[string]domain.Account
	bank      *domain.Account
	conflicts []*domain.RuleConflictError
}

// NewSnapshot sorts the active rules by priority, compiles regex patterns and
// indexes the accounts. Rules with malformed patterns or unknown accounts are
// logged here once and left out of the snapshot.
func NewSnapshot(tenantID string, rules []domain.MappingRule, accounts []domain.Account, cfg Config) *Snapshot {
	s := &Snapshot{
		TenantID: tenantID,
		accounts: make(map[string]domain.Account, len(accounts)),
		byCode:   make(map[string]domain.Account, len(accounts)),
	}

	sorted := make([]domain.Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, a := range sorted {
		if !a.IsActive {
			continue
		}
		s.accounts[a.ID] = a
		s.byCode[a.Code] = a
	}
	s.bank = findBankAccount(sorted, cfg.BankAccountPrefix)

	ordered := make([]domain.MappingRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	log := logger.GetLogger().WithField("tenant_id", tenantID)
	for _, r := range ordered {
		account, ok := s.Resolve(r.Account)
		if !ok {
			log.WithFields(map[string]interface{}{
				"rule_id":      r.ID,
				"account_id":   r.Account.ID,
				"account_code": r.Account.Code,
			}).Warn("Rule references an unknown account, skipping")
			continue
		}

		cr := compiledRule{rule: r, account: account, pattern: strings.ToLower(r.Pattern)}
		if r.PatternType == domain.PatternRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				conflict := &domain.RuleConflictError{RuleID: r.ID, Pattern: r.Pattern, Err: err}
				s.conflicts = append(s.conflicts, conflict)
				log.WithError(conflict).Warn("Skipping rule with malformed pattern")
				continue
			}
			cr.re = re
			s.regex = append(s.regex, cr)
			continue
		}
		if strings.TrimSpace(cr.pattern) == "" {
			continue
		}
		s.literal = append(s.literal, cr)
	}
	return s
}

// findBankAccount returns the first active asset account whose code starts
// with the prefix or whose name mentions a bank.
func findBankAccount(accounts []domain.Account, prefix string) *domain.Account {
	for i := range accounts {
		a := accounts[i]
		if !a.IsActive || a.Type != domain.Asset {
			continue
		}
		if (prefix != "" && strings.HasPrefix(a.Code, prefix)) || strings.Contains(strings.ToLower(a.Name), "bank") {
			return &a
		}
	}
	return nil
}

// Resolve validates a reference against the chart. The id wins when set and
// must agree with the code when both are given.
func (s *Snapshot) Resolve(ref domain.AccountRef) (domain.Account, bool) {
	if ref.ID != "" {
		a, ok := s.accounts[ref.ID]
		if !ok || (ref.Code != "" && ref.Code != a.Code) {
			return domain.Account{}, false
		}
		return a, true
	}
	if ref.Code != "" {
		a, ok := s.byCode[ref.Code]
		return a, ok
	}
	return domain.Account{}, false
}

// AccountByCode looks up an active account by code.
func (s *Snapshot) AccountByCode(code string) (domain.Account, bool) {
	a, ok := s.byCode[code]
	return a, ok
}

// Accounts returns the active accounts ordered by code.
func (s *Snapshot) Accounts() []domain.Account {
	out := make([]domain.Account, 0, len(s.byCode))
	for _, a := range s.byCode {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// BankAccount is the inferred bank/cash account, or nil.
func (s *Snapshot) BankAccount() *domain.Account {
	return s.bank
}

// Conflicts lists the rules skipped for malformed patterns.
func (s *Snapshot) Conflicts() []*domain.RuleConflictError {
	return s.conflicts
}

// RuleCount is the number of evaluable rules.
func (s *Snapshot) RuleCount() int {
	return len(s.literal) + len(s.regex)
}
