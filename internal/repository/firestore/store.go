// Package firestore keeps mapping rules and the chart of accounts in Cloud
// Firestore, one subcollection per tenant.
package firestore

import (
	"context"
	"sort"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/repository"
	"ledger-recon/pkg/logger"
)

var (
	_ repository.RuleRepository   = (*Store)(nil)
	_ repository.AccountDirectory = (*Store)(nil)
)

type Store struct {
	client *fs.Client
}

func New(client *fs.Client) *Store {
	return &Store{client: client}
}

// Open connects to the project's default database. The emulator is used when
// FIRESTORE_EMULATOR_HOST is set.
func Open(ctx context.Context, projectID string) (*Store, error) {
	client, err := fs.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return New(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) rules(tenantID string) *fs.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("mapping_rules")
}

// accounts are keyed by code, which makes code uniqueness a document
// existence check.
func (s *Store) accounts(tenantID string) *fs.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("accounts")
}

type ruleDoc struct {
	ID          string     `firestore:"id"`
	Pattern     string     `firestore:"pattern"`
	PatternType string     `firestore:"patternType"`
	AccountID   string     `firestore:"accountId"`
	AccountCode string     `firestore:"accountCode"`
	Priority    int        `firestore:"priority"`
	IsActive    bool       `firestore:"isActive"`
	Description string     `firestore:"description,omitempty"`
	Category    string     `firestore:"category,omitempty"`
	Vendor      string     `firestore:"vendor,omitempty"`
	MatchCount  int        `firestore:"matchCount"`
	LastMatched *time.Time `firestore:"lastMatched,omitempty"`
	Source      string     `firestore:"source"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

func toRuleDoc(r *domain.MappingRule) ruleDoc {
	return ruleDoc{
		ID:          r.ID,
		Pattern:     r.Pattern,
		PatternType: string(r.PatternType),
		AccountID:   r.Account.ID,
		AccountCode: r.Account.Code,
		Priority:    r.Priority,
		IsActive:    r.IsActive,
		Description: r.Metadata.Description,
		Category:    r.Metadata.Category,
		Vendor:      r.Metadata.Vendor,
		MatchCount:  r.Metadata.MatchCount,
		LastMatched: r.Metadata.LastMatched,
		Source:      string(r.Metadata.Source),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (d ruleDoc) toDomain(tenantID string) domain.MappingRule {
	return domain.MappingRule{
		ID:          d.ID,
		TenantID:    tenantID,
		Pattern:     d.Pattern,
		PatternType: domain.PatternType(d.PatternType),
		Account:     domain.AccountRef{ID: d.AccountID, Code: d.AccountCode},
		Priority:    d.Priority,
		IsActive:    d.IsActive,
		Metadata: domain.RuleMetadata{
			Description: d.Description,
			Category:    d.Category,
			Vendor:      d.Vendor,
			MatchCount:  d.MatchCount,
			LastMatched: d.LastMatched,
			Source:      domain.RuleSource(d.Source),
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// SaveRule upserts on (pattern, pattern type) inside a transaction so two
// learners cannot create twin rules.
func (s *Store) SaveRule(ctx context.Context, rule *domain.MappingRule) (string, error) {
	if err := rule.Validate(); err != nil {
		return "", err
	}

	col := s.rules(rule.TenantID)
	now := time.Now().UTC()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		query := col.Where("pattern", "==", rule.Pattern).Where("patternType", "==", string(rule.PatternType)).Limit(1)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}

		if len(docs) > 0 {
			var existing ruleDoc
			if err := docs[0].DataTo(&existing); err != nil {
				return err
			}
			rule.ID = existing.ID
			rule.CreatedAt = existing.CreatedAt
			rule.Metadata.MatchCount = existing.MatchCount
			rule.Metadata.LastMatched = existing.LastMatched
		}
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
		rule.UpdatedAt = now
		return tx.Set(col.Doc(rule.ID), toRuleDoc(rule))
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("pattern", rule.Pattern).Error("Failed to save mapping rule")
		return "", err
	}
	return rule.ID, nil
}

func (s *Store) GetRule(ctx context.Context, tenantID, ruleID string) (*domain.MappingRule, error) {
	snap, err := s.rules(tenantID).Doc(ruleID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get mapping rule")
		return nil, err
	}

	var d ruleDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	rule := d.toDomain(tenantID)
	return &rule, nil
}

func (s *Store) ListActiveRules(ctx context.Context, tenantID string) ([]domain.MappingRule, error) {
	iter := s.rules(tenantID).Where("isActive", "==", true).Documents(ctx)
	defer iter.Stop()

	var rules []domain.MappingRule
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to list mapping rules")
			return nil, err
		}
		var d ruleDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		rules = append(rules, d.toDomain(tenantID))
	}

	// Ordered here rather than in the query to avoid a composite index.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *Store) IncrementMatchCount(ctx context.Context, tenantID, ruleID string, at time.Time) error {
	_, err := s.rules(tenantID).Doc(ruleID).Update(ctx, []fs.Update{
		{Path: "matchCount", Value: fs.Increment(1)},
		{Path: "lastMatched", Value: at.UTC()},
	})
	return s.updateErr(err, ruleID, "Failed to increment rule match count")
}

func (s *Store) DeactivateRule(ctx context.Context, tenantID, ruleID string) error {
	_, err := s.rules(tenantID).Doc(ruleID).Update(ctx, []fs.Update{
		{Path: "isActive", Value: false},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return s.updateErr(err, ruleID, "Failed to deactivate mapping rule")
}

func (s *Store) updateErr(err error, ruleID, msg string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	logger.GetLogger().WithError(err).Error(msg)
	return err
}

type accountDoc struct {
	ID         string    `firestore:"id"`
	Code       string    `firestore:"code"`
	Name       string    `firestore:"name"`
	Type       string    `firestore:"type"`
	ParentCode string    `firestore:"parentCode,omitempty"`
	IsActive   bool      `firestore:"isActive"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func (d accountDoc) toDomain(tenantID string) domain.Account {
	return domain.Account{
		ID:         d.ID,
		TenantID:   tenantID,
		Code:       d.Code,
		Name:       d.Name,
		Type:       domain.AccountType(d.Type),
		ParentCode: d.ParentCode,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
	}
}

func (s *Store) GetAccount(ctx context.Context, tenantID, accountID string) (*domain.Account, error) {
	docs, err := s.accounts(tenantID).Where("id", "==", accountID).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get account")
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.NewNotFoundError("account not found: " + accountID)
	}

	var d accountDoc
	if err := docs[0].DataTo(&d); err != nil {
		return nil, err
	}
	account := d.toDomain(tenantID)
	return &account, nil
}

// ListAccounts relies on document ids being account codes, so the default
// ordering is code order.
func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]domain.Account, error) {
	docs, err := s.accounts(tenantID).Documents(ctx).GetAll()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list accounts")
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(docs))
	for _, snap := range docs {
		var d accountDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		accounts = append(accounts, d.toDomain(tenantID))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (s *Store) CreateAccount(ctx context.Context, tenantID string, spec domain.NewAccountSpec) (*domain.Account, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	d := accountDoc{
		ID:         uuid.New().String(),
		Code:       spec.Code,
		Name:       spec.Name,
		Type:       string(spec.Type),
		ParentCode: spec.ParentCode,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.accounts(tenantID).Doc(spec.Code).Create(ctx, d)
	if status.Code(err) == codes.AlreadyExists {
		return nil, domain.NewAlreadyExistsError("account code already exists: " + spec.Code)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create account")
		return nil, err
	}

	account := d.toDomain(tenantID)
	return &account, nil
}
