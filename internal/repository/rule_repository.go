package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

const ruleColumns = `id, tenant_id, pattern, pattern_type, account_id, account_code, priority, is_active,
	description, category, vendor, match_count, last_matched, source, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.MappingRule, error) {
	var r domain.MappingRule
	var lastMatched sql.NullTime
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Pattern, &r.PatternType, &r.Account.ID, &r.Account.Code, &r.Priority, &r.IsActive,
		&r.Metadata.Description, &r.Metadata.Category, &r.Metadata.Vendor, &r.Metadata.MatchCount, &lastMatched,
		&r.Metadata.Source, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastMatched.Valid {
		t := lastMatched.Time.UTC()
		r.Metadata.LastMatched = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (s *SQLStore) SaveRule(ctx context.Context, rule *domain.MappingRule) (string, error) {
	if err := rule.Validate(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO mapping_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tenant_id, pattern, pattern_type) DO UPDATE SET
			account_id = excluded.account_id,
			account_code = excluded.account_code,
			priority = excluded.priority,
			is_active = excluded.is_active,
			description = excluded.description,
			category = excluded.category,
			vendor = excluded.vendor,
			source = excluded.source,
			updated_at = excluded.updated_at
	`

	var lastMatched sql.NullTime
	if rule.Metadata.LastMatched != nil {
		lastMatched = sql.NullTime{Time: rule.Metadata.LastMatched.UTC(), Valid: true}
	}

	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			rule.ID, rule.TenantID, rule.Pattern, rule.PatternType, rule.Account.ID, rule.Account.Code,
			rule.Priority, rule.IsActive, rule.Metadata.Description, rule.Metadata.Category, rule.Metadata.Vendor,
			rule.Metadata.MatchCount, lastMatched, rule.Metadata.Source, rule.CreatedAt, rule.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT id FROM mapping_rules WHERE tenant_id = $1 AND pattern = $2 AND pattern_type = $3`,
			rule.TenantID, rule.Pattern, rule.PatternType,
		).Scan(&id)
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("pattern", rule.Pattern).Error("Failed to save mapping rule")
		return "", err
	}

	rule.ID = id
	return id, nil
}

func (s *SQLStore) GetRule(ctx context.Context, tenantID, ruleID string) (*domain.MappingRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM mapping_rules WHERE tenant_id = $1 AND id = $2`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, tenantID, ruleID))
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("mapping rule not found: " + ruleID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get mapping rule")
		return nil, err
	}
	return rule, nil
}

func (s *SQLStore) ListActiveRules(ctx context.Context, tenantID string) ([]domain.MappingRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM mapping_rules
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY priority ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list mapping rules")
		return nil, err
	}
	defer rows.Close()

	var rules []domain.MappingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan mapping rule")
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (s *SQLStore) IncrementMatchCount(ctx context.Context, tenantID, ruleID string, at time.Time) error {
	query := `
		UPDATE mapping_rules
		SET match_count = match_count + 1, last_matched = $1
		WHERE tenant_id = $2 AND id = $3
	`

	result, err := s.db.ExecContext(ctx, query, at.UTC(), tenantID, ruleID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to increment rule match count")
		return err
	}
	return expectOneRow(result, "mapping rule not found: "+ruleID)
}

func (s *SQLStore) DeactivateRule(ctx context.Context, tenantID, ruleID string) error {
	query := `
		UPDATE mapping_rules
		SET is_active = FALSE, updated_at = $1
		WHERE tenant_id = $2 AND id = $3
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to deactivate mapping rule")
		return err
	}
	return expectOneRow(result, "mapping rule not found: "+ruleID)
}

func expectOneRow(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(notFound)
	}
	return nil
}
