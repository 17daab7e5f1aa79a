package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/journal"
	"ledger-recon/pkg/logger"
)

// journalTables names one copy of the journal schema. Staging uses a
// parallel set of tables scoped by session.
type journalTables struct {
	entries     string
	lines       string
	adjustments string
}

var (
	postedTables  = journalTables{entries: "journal_entries", lines: "journal_lines", adjustments: "balance_adjustments"}
	stagingTables = journalTables{entries: "staging_journal_entries", lines: "staging_journal_lines", adjustments: "staging_balance_adjustments"}
)

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *SQLStore) PostEntry(ctx context.Context, entry *domain.JournalEntry) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.postInTx(ctx, tx, entry)
	})
	if err != nil {
		logPostingError(err, entry)
		return err
	}
	return nil
}

// postInTx checks idempotency, writes the entry as posted and applies its
// balance adjustments.
func (s *SQLStore) postInTx(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) error {
	if err := journal.Validate(entry); err != nil {
		return err
	}

	var existing string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM journal_entries WHERE tenant_id = $1 AND source = $2 AND source_id = $3`,
		entry.TenantID, entry.Source, entry.SourceID,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: %s/%s already posted as %s", domain.ErrDuplicatePosting, entry.Source, entry.SourceID, existing)
	}
	if err != sql.ErrNoRows {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Status = domain.JournalPosted

	if err := s.insertEntry(ctx, tx, postedTables, entry); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", domain.ErrDuplicatePosting, entry.Source, entry.SourceID)
		}
		return err
	}
	return s.applyAdjustments(ctx, tx, entry.TenantID, entry.Adjustments)
}

func (s *SQLStore) insertEntry(ctx context.Context, tx *sql.Tx, t journalTables, entry *domain.JournalEntry) error {
	var (
		query string
		args  []any
	)
	if t == stagingTables {
		query = `
			INSERT INTO ` + t.entries + ` (id, session_id, tenant_id, entry_date, source, source_id, description,
				status, total_debit, total_credit, reversal_of, void_reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		args = []any{entry.ID, entry.SessionID, entry.TenantID, entry.EntryDate.UTC(), entry.Source, entry.SourceID,
			entry.Description, entry.Status, entry.TotalDebit, entry.TotalCredit, entry.ReversalOf, entry.VoidReason,
			entry.CreatedAt.UTC()}
	} else {
		query = `
			INSERT INTO ` + t.entries + ` (id, tenant_id, entry_date, source, source_id, description,
				status, total_debit, total_credit, reversal_of, void_reason, session_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		args = []any{entry.ID, entry.TenantID, entry.EntryDate.UTC(), entry.Source, entry.SourceID,
			entry.Description, entry.Status, entry.TotalDebit, entry.TotalCredit, entry.ReversalOf, entry.VoidReason,
			entry.SessionID, entry.CreatedAt.UTC()}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	lineStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+t.lines+` (entry_id, line_no, account_code, account_name, debit, credit, description, dimensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return err
	}
	defer lineStmt.Close()

	for i, line := range entry.Lines {
		dims, err := json.Marshal(line.Dimensions)
		if err != nil {
			return err
		}
		if line.Dimensions == nil {
			dims = []byte("{}")
		}
		if _, err := lineStmt.ExecContext(ctx, entry.ID, i, line.AccountCode, line.AccountName,
			line.Debit, line.Credit, line.Description, string(dims)); err != nil {
			return err
		}
	}

	if len(entry.Adjustments) == 0 {
		return nil
	}
	adjStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+t.adjustments+` (entry_id, seq, entity_id, amount, increase)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer adjStmt.Close()

	for i, adj := range entry.Adjustments {
		if _, err := adjStmt.ExecContext(ctx, entry.ID, i, adj.EntityID, adj.Amount, adj.Increase); err != nil {
			return err
		}
	}
	return nil
}

// applyAdjustments moves entity balances. Entities are visited in id order so
// concurrent postings lock rows in the same order.
func (s *SQLStore) applyAdjustments(ctx context.Context, tx *sql.Tx, tenantID string, adjustments []domain.BalanceAdjustment) error {
	deltas := make(map[string]decimal.Decimal)
	for _, adj := range adjustments {
		deltas[adj.EntityID] = deltas[adj.EntityID].Add(adj.Signed())
	}
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT current_balance FROM entities WHERE tenant_id = $1 AND id = $2`+s.dialect.forUpdate,
			tenantID, id,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			return domain.NewNotFoundError("entity not found: " + id)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET current_balance = $1 WHERE tenant_id = $2 AND id = $3`,
			balance.Add(deltas[id]), tenantID, id,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) GetEntry(ctx context.Context, tenantID, entryID string) (*domain.JournalEntry, error) {
	entry, err := s.loadEntry(ctx, s.db, `WHERE tenant_id = $1 AND id = $2`, tenantID, entryID)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("journal entry not found: " + entryID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get journal entry")
		return nil, err
	}
	return entry, nil
}

func (s *SQLStore) FindBySource(ctx context.Context, tenantID string, source domain.JournalSource, sourceID string) (*domain.JournalEntry, error) {
	entry, err := s.loadEntry(ctx, s.db, `WHERE tenant_id = $1 AND source = $2 AND source_id = $3`, tenantID, source, sourceID)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError(fmt.Sprintf("no journal entry for %s %s", source, sourceID))
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to find journal entry by source")
		return nil, err
	}
	return entry, nil
}

func (s *SQLStore) VoidEntry(ctx context.Context, tenantID, entryID string, reversal *domain.JournalEntry) error {
	if reversal == nil || reversal.ReversalOf != entryID {
		return domain.NewValidationError("reversal must reference the voided entry")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status domain.JournalStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM journal_entries WHERE tenant_id = $1 AND id = $2`+s.dialect.forUpdate,
			tenantID, entryID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return domain.NewNotFoundError("journal entry not found: " + entryID)
		}
		if err != nil {
			return err
		}
		if status != domain.JournalPosted {
			return domain.ErrAlreadyVoided
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE journal_entries SET status = $1, void_reason = $2 WHERE tenant_id = $3 AND id = $4`,
			domain.JournalVoid, reversal.VoidReason, tenantID, entryID,
		); err != nil {
			return err
		}
		return s.postInTx(ctx, tx, reversal)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyVoided) {
			logger.GetLogger().WithError(err).WithField("entry_id", entryID).Error("Failed to void journal entry")
		}
		return err
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) loadEntry(ctx context.Context, q queryer, where string, args ...any) (*domain.JournalEntry, error) {
	query := `
		SELECT id, tenant_id, entry_date, source, source_id, description, status,
			total_debit, total_credit, reversal_of, void_reason, session_id, created_at
		FROM journal_entries ` + where

	var e domain.JournalEntry
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&e.ID, &e.TenantID, &e.EntryDate, &e.Source, &e.SourceID, &e.Description, &e.Status,
		&e.TotalDebit, &e.TotalCredit, &e.ReversalOf, &e.VoidReason, &e.SessionID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.EntryDate = e.EntryDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()

	if e.Lines, err = loadLines(ctx, q, postedTables, e.ID); err != nil {
		return nil, err
	}
	if e.Adjustments, err = loadAdjustments(ctx, q, postedTables, e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

func loadLines(ctx context.Context, q queryer, t journalTables, entryID string) ([]domain.JournalLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT account_code, account_name, debit, credit, description, dimensions
		FROM `+t.lines+` WHERE entry_id = $1 ORDER BY line_no ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.JournalLine
	for rows.Next() {
		var l domain.JournalLine
		var dims string
		if err := rows.Scan(&l.AccountCode, &l.AccountName, &l.Debit, &l.Credit, &l.Description, &dims); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dims), &l.Dimensions); err != nil {
			return nil, fmt.Errorf("decode dimensions of entry %s: %w", entryID, err)
		}
		if len(l.Dimensions) == 0 {
			l.Dimensions = nil
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadAdjustments(ctx context.Context, q queryer, t journalTables, entryID string) ([]domain.BalanceAdjustment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT entity_id, amount, increase
		FROM `+t.adjustments+` WHERE entry_id = $1 ORDER BY seq ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []domain.BalanceAdjustment
	for rows.Next() {
		var a domain.BalanceAdjustment
		if err := rows.Scan(&a.EntityID, &a.Amount, &a.Increase); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

func logPostingError(err error, entry *domain.JournalEntry) {
	if errors.Is(err, domain.ErrDuplicatePosting) {
		return
	}
	var imbalance *domain.PostingImbalanceError
	if errors.As(err, &imbalance) {
		return
	}
	logger.GetLogger().WithError(err).
		WithField("source", entry.Source).
		WithField("source_id", entry.SourceID).
		Error("Failed to post journal entry")
}
