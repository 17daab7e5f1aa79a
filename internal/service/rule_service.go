package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/learning"
	"ledger-recon/internal/repository"
	"ledger-recon/pkg/logger"
)

type RuleService interface {
	ListRules(ctx context.Context, tenantID string) ([]domain.MappingRule, error)
	CreateRule(ctx context.Context, rule domain.MappingRule) (*domain.MappingRule, error)
	Learn(ctx context.Context, req learning.Request) (*learning.Result, error)
	DeactivateRule(ctx context.Context, tenantID, ruleID string) error
}

type ruleService struct {
	rules    repository.RuleRepository
	accounts repository.AccountDirectory
	learner  *learning.Learner
	now      func() time.Time
}

func NewRuleService(rules repository.RuleRepository, accounts repository.AccountDirectory, learnedPriority int) RuleService {
	return &ruleService{
		rules:    rules,
		accounts: accounts,
		learner:  learning.NewLearner(rules, accounts, learnedPriority),
		now:      time.Now,
	}
}

func (s *ruleService) ListRules(ctx context.Context, tenantID string) ([]domain.MappingRule, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.NewValidationError("tenant is required")
	}
	return s.rules.ListActiveRules(ctx, tenantID)
}

// CreateRule stores a configured rule. The account reference is resolved
// against the chart so the rule always carries a matching id and code.
func (s *ruleService) CreateRule(ctx context.Context, rule domain.MappingRule) (*domain.MappingRule, error) {
	if rule.Priority == 0 {
		rule.Priority = domain.DefaultRulePriority
	}
	if rule.Metadata.Source == "" {
		rule.Metadata.Source = domain.RuleSourceUserCreated
	}
	rule.IsActive = true
	if rule.PatternType.IsLiteral() {
		rule.Pattern = strings.ToLower(rule.Pattern)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if rule.PatternType == domain.PatternRegex {
		if _, err := regexp.Compile("(?i)" + rule.Pattern); err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid regex %q: %v", rule.Pattern, err))
		}
	}

	accounts, err := s.accounts.ListAccounts(ctx, rule.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	account, ok := findAccount(accounts, rule.Account)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown account %s/%s", rule.Account.ID, rule.Account.Code))
	}
	rule.Account = account.Ref()

	now := s.now().UTC()
	rule.CreatedAt, rule.UpdatedAt = now, now
	id, err := s.rules.SaveRule(ctx, &rule)
	if err != nil {
		return nil, err
	}
	rule.ID = id

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":    rule.TenantID,
		"rule_id":      id,
		"pattern_type": rule.PatternType,
		"account_code": rule.Account.Code,
	}).Info("Mapping rule saved")

	return &rule, nil
}

func (s *ruleService) Learn(ctx context.Context, req learning.Request) (*learning.Result, error) {
	return s.learner.Learn(ctx, req)
}

func (s *ruleService) DeactivateRule(ctx context.Context, tenantID, ruleID string) error {
	if err := s.rules.DeactivateRule(ctx, tenantID, ruleID); err != nil {
		return err
	}
	logger.GetLogger().WithField("tenant_id", tenantID).WithField("rule_id", ruleID).Info("Mapping rule deactivated")
	return nil
}

// findAccount resolves an active account by id or code. When both are given
// they must name the same account.
func findAccount(accounts []domain.Account, ref domain.AccountRef) (domain.Account, bool) {
	for _, a := range accounts {
		if !a.IsActive {
			continue
		}
		if ref.ID != "" && a.ID == ref.ID {
			return a, ref.Code == "" || ref.Code == a.Code
		}
		if ref.ID == "" && ref.Code != "" && a.Code == ref.Code {
			return a, true
		}
	}
	return domain.Account{}, false
}
