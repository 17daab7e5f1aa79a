package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

const entityColumns = `id, tenant_id, kind, name, email, type, current_balance, is_active`

func scanEntity(row rowScanner) (*domain.Entity, error) {
	var e domain.Entity
	if err := row.Scan(&e.ID, &e.TenantID, &e.Kind, &e.Name, &e.Email, &e.Type, &e.CurrentBalance, &e.IsActive); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLStore) GetEntity(ctx context.Context, tenantID, entityID string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE tenant_id = $1 AND id = $2`

	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, tenantID, entityID))
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("entity not found: " + entityID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get entity")
		return nil, err
	}
	return entity, nil
}

func (s *SQLStore) ListActiveEntities(ctx context.Context, tenantID string, kind domain.EntityKind) ([]domain.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE tenant_id = $1 AND kind = $2 AND is_active = TRUE
		ORDER BY name ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, kind)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list entities")
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan entity")
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// ListOutstandingDocuments returns the entity's unpaid, non-draft documents
// ordered by due date.
func (s *SQLStore) ListOutstandingDocuments(ctx context.Context, tenantID, entityID string) ([]domain.OutstandingDocument, error) {
	query := `
		SELECT id, entity_id, kind, number, amount_due, issue_date, due_date, status
		FROM outstanding_documents
		WHERE tenant_id = $1 AND entity_id = $2 AND status IN ($3, $4, $5)
		ORDER BY due_date ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, entityID,
		domain.DocumentSent, domain.DocumentPartiallyPaid, domain.DocumentOverdue)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list outstanding documents")
		return nil, err
	}
	defer rows.Close()

	var docs []domain.OutstandingDocument
	for rows.Next() {
		var d domain.OutstandingDocument
		var issue, due sql.NullTime
		if err := rows.Scan(&d.ID, &d.EntityID, &d.Kind, &d.Number, &d.AmountDue, &issue, &due, &d.Status); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan outstanding document")
			return nil, err
		}
		if issue.Valid {
			d.IssueDate = issue.Time.UTC()
		}
		if due.Valid {
			d.DueDate = due.Time.UTC()
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLStore) SaveEntity(ctx context.Context, entity *domain.Entity) error {
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}

	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			type = excluded.type,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query, entity.ID, entity.TenantID, entity.Kind, entity.Name,
		entity.Email, entity.Type, entity.CurrentBalance, entity.IsActive)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to save entity")
		return err
	}
	return nil
}

func (s *SQLStore) SaveDocument(ctx context.Context, tenantID string, doc *domain.OutstandingDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outstanding_documents (id, tenant_id, entity_id, kind, number, amount_due, issue_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			amount_due = excluded.amount_due,
			due_date = excluded.due_date,
			status = excluded.status
	`

	_, err := s.db.ExecContext(ctx, query, doc.ID, tenantID, doc.EntityID, doc.Kind, doc.Number,
		doc.AmountDue, nullTime(doc.IssueDate), nullTime(doc.DueDate), doc.Status)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to save outstanding document")
		return err
	}
	return nil
}
