package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

const accountColumns = `id, tenant_id, code, name, type, parent_code, is_active, created_at`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentCode, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *SQLStore) GetAccount(ctx context.Context, tenantID, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = $1 AND id = $2`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, tenantID, accountID))
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("account not found: " + accountID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get account")
		return nil, err
	}
	return account, nil
}

func (s *SQLStore) ListAccounts(ctx context.Context, tenantID string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = $1 ORDER BY code ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list accounts")
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan account")
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *SQLStore) CreateAccount(ctx context.Context, tenantID string, spec domain.NewAccountSpec) (*domain.Account, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Code:       spec.Code,
		Name:       spec.Name,
		Type:       spec.Type,
		ParentCode: spec.ParentCode,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.insertAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// SaveAccount inserts a fully specified account, keeping its id. Used when
// seeding a chart of accounts.
func (s *SQLStore) SaveAccount(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	return s.insertAccount(ctx, account)
}

func (s *SQLStore) insertAccount(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.TenantID, a.Code, a.Name, a.Type, a.ParentCode, a.IsActive, a.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return domain.NewAlreadyExistsError("account code already exists: " + a.Code)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create account")
		return err
	}
	return nil
}
