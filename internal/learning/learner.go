package learning

import (
	"context"
	"fmt"
	"time"

	"ledger-recon/internal/chart"
	"ledger-recon/internal/domain"
	"ledger-recon/internal/repository"
	"ledger-recon/pkg/logger"
)

// DefaultLearnedPriority places learned rules ahead of configured rules,
// which default to domain.DefaultRulePriority. Lower values win.
const DefaultLearnedPriority = 10

// Request is an approved mapping to learn from. Exactly one of Account and
// NewAccount is set.
type Request struct {
	TenantID    string                 `json:"tenant_id"`
	Transaction domain.BankTransaction `json:"transaction"`
	Account     domain.AccountRef      `json:"account"`
	NewAccount  *domain.NewAccountSpec `json:"new_account,omitempty"`
	Source      domain.RuleSource      `json:"source"`
	Category    string                 `json:"category,omitempty"`
	Vendor      string                 `json:"vendor,omitempty"`
}

// Result is the stored rule and the account created for it, if any.
type Result struct {
	Rule           domain.MappingRule `json:"rule"`
	CreatedAccount *domain.Account    `json:"created_account,omitempty"`
}

// Learner persists rules derived from approved mappings.
type Learner struct {
	rules    repository.RuleRepository
	accounts repository.AccountDirectory
	priority int
	now      func() time.Time
}

func NewLearner(rules repository.RuleRepository, accounts repository.AccountDirectory, priority int) *Learner {
	if priority <= 0 {
		priority = DefaultLearnedPriority
	}
	return &Learner{rules: rules, accounts: accounts, priority: priority, now: time.Now}
}

// Learn derives a contains-rule from the transaction and binds it to the
// approved account. A requested new account is created first; if that
// fails no rule is written.
func (l *Learner) Learn(ctx context.Context, req Request) (*Result, error) {
	if req.TenantID == "" {
		return nil, domain.NewValidationError("tenant is required")
	}
	if req.NewAccount == nil && req.Account.IsZero() {
		return nil, domain.NewValidationError("an account or a new account is required")
	}
	if req.NewAccount != nil && !req.Account.IsZero() {
		return nil, domain.NewValidationError("account and new account are mutually exclusive")
	}

	pattern := DerivePattern(req.Transaction.Description)
	if pattern == "" {
		return nil, domain.NewValidationError(fmt.Sprintf("no usable pattern in description %q", req.Transaction.Description))
	}

	accounts, err := l.accounts.ListAccounts(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	result := &Result{}
	var account domain.Account
	if req.NewAccount != nil {
		if err := chart.New(accounts).CheckNew(*req.NewAccount); err != nil {
			return nil, err
		}
		created, err := l.accounts.CreateAccount(ctx, req.TenantID, *req.NewAccount)
		if err != nil {
			return nil, fmt.Errorf("failed to create account %s: %w", req.NewAccount.Code, err)
		}
		account = *created
		result.CreatedAccount = created
	} else {
		found, ok := resolve(accounts, req.Account)
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("unknown account %s/%s", req.Account.ID, req.Account.Code))
		}
		account = found
	}

	source := req.Source
	if source == "" {
		source = domain.RuleSourceUserCreated
	}
	now := l.now().UTC()
	rule := domain.MappingRule{
		TenantID:    req.TenantID,
		Pattern:     pattern,
		PatternType: domain.PatternContains,
		Account:     account.Ref(),
		Priority:    l.priority,
		IsActive:    true,
		Metadata: domain.RuleMetadata{
			Description: req.Transaction.Description,
			Category:    req.Category,
			Vendor:      req.Vendor,
			Source:      source,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := l.rules.SaveRule(ctx, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to save learned rule: %w", err)
	}
	rule.ID = id
	result.Rule = rule

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":    req.TenantID,
		"rule_id":      id,
		"pattern":      pattern,
		"account_code": account.Code,
		"new_account":  result.CreatedAccount != nil,
	}).Info("Learned mapping rule")

	return result, nil
}

func resolve(accounts []domain.Account, ref domain.AccountRef) (domain.Account, bool) {
	for _, a := range accounts {
		if !a.IsActive {
			continue
		}
		if ref.ID != "" && a.ID == ref.ID {
			return a, ref.Code == "" || ref.Code == a.Code
		}
		if ref.ID == "" && a.Code == ref.Code {
			return a, true
		}
	}
	return domain.Account{}, false
}
