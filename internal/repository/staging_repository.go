package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/journal"
	"ledger-recon/pkg/logger"
)

func (s *SQLStore) CreateSession(ctx context.Context, session *domain.ImportSession) error {
	if session.TenantID == "" {
		return domain.NewValidationError("session tenant is required")
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Status = domain.SessionPending

	query := `
		INSERT INTO import_sessions (id, tenant_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, session.ID, session.TenantID, session.Status, session.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return domain.NewAlreadyExistsError("import session already exists: " + session.ID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create import session")
		return err
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ImportSession, error) {
	session, err := s.loadSession(ctx, s.db, tenantID, sessionID, false)
	if err != nil {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			logger.GetLogger().WithError(err).Error("Failed to get import session")
		}
		return nil, err
	}
	return session, nil
}

func (s *SQLStore) loadSession(ctx context.Context, q queryer, tenantID, sessionID string, lock bool) (*domain.ImportSession, error) {
	query := `
		SELECT id, tenant_id, status, staged_entries, staged_lines, promoted_entries, promoted_lines, created_at, promoted_at
		FROM import_sessions WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += s.dialect.forUpdate
	}

	var sess domain.ImportSession
	var promotedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, tenantID, sessionID).Scan(
		&sess.ID, &sess.TenantID, &sess.Status, &sess.StagedEntries, &sess.StagedLines,
		&sess.PromotedEntries, &sess.PromotedLines, &sess.CreatedAt, &promotedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("import session not found: " + sessionID)
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	if promotedAt.Valid {
		t := promotedAt.Time.UTC()
		sess.PromotedAt = &t
	}
	return &sess, nil
}

func (s *SQLStore) StageEntry(ctx context.Context, sessionID string, entry *domain.JournalEntry) error {
	if err := journal.Validate(entry); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.loadSession(ctx, tx, entry.TenantID, sessionID, true)
		if err != nil {
			return err
		}
		if sess.Status == domain.SessionPromoted {
			return domain.ErrSessionPromoted
		}

		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		entry.Status = domain.JournalDraft
		entry.SessionID = sessionID

		if err := s.insertEntry(ctx, tx, stagingTables, entry); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s/%s already staged in session %s", domain.ErrDuplicatePosting, entry.Source, entry.SourceID, sessionID)
			}
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE import_sessions
			SET staged_entries = staged_entries + 1, staged_lines = staged_lines + $1
			WHERE id = $2
		`, len(entry.Lines), sessionID)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSessionPromoted) && !errors.Is(err, domain.ErrDuplicatePosting) {
			logger.GetLogger().WithError(err).WithField("session_id", sessionID).Error("Failed to stage journal entry")
		}
		return err
	}
	return nil
}

func (s *SQLStore) PromoteSession(ctx context.Context, tenantID, sessionID string, at time.Time) (*domain.PromotionResult, error) {
	var result *domain.PromotionResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.loadSession(ctx, tx, tenantID, sessionID, true)
		if err != nil {
			return err
		}
		if sess.Status == domain.SessionPromoted {
			result, err = s.recordedPromotion(ctx, tx, sess)
			return err
		}

		staged, err := s.loadStaged(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		for _, entry := range staged {
			entry.ID = uuid.New().String()
			entry.SessionID = sessionID
			entry.CreatedAt = at.UTC()
			if err := s.postInTx(ctx, tx, entry); err != nil {
				return err
			}
		}

		copied, err := s.recordedPromotion(ctx, tx, sess)
		if err != nil {
			return err
		}
		if copied.Entries != sess.StagedEntries || copied.Lines != sess.StagedLines {
			return &domain.StagingPromotionMismatchError{
				SessionID:     sessionID,
				StagedEntries: sess.StagedEntries,
				StagedLines:   sess.StagedLines,
				CopiedEntries: copied.Entries,
				CopiedLines:   copied.Lines,
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE import_sessions
			SET status = $1, promoted_entries = $2, promoted_lines = $3, promoted_at = $4
			WHERE id = $5
		`, domain.SessionPromoted, copied.Entries, copied.Lines, at.UTC(), sessionID)
		if err != nil {
			return err
		}
		result = copied
		return nil
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("session_id", sessionID).Error("Failed to promote import session")
		return nil, err
	}
	return result, nil
}

// recordedPromotion counts what production holds for the session.
func (s *SQLStore) recordedPromotion(ctx context.Context, tx *sql.Tx, sess *domain.ImportSession) (*domain.PromotionResult, error) {
	result := &domain.PromotionResult{SessionID: sess.ID, EntryIDs: []string{}}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM journal_entries WHERE tenant_id = $1 AND session_id = $2 ORDER BY id ASC`,
		sess.TenantID, sess.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result.EntryIDs = append(result.EntryIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.Entries = len(result.EntryIDs)

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND e.session_id = $2
	`, sess.TenantID, sess.ID).Scan(&result.Lines)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) loadStaged(ctx context.Context, tx *sql.Tx, sessionID string) ([]*domain.JournalEntry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, tenant_id, entry_date, source, source_id, description,
			reversal_of, void_reason, created_at
		FROM staging_journal_entries
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}

	var entries []*domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntryDate, &e.Source, &e.SourceID, &e.Description,
			&e.ReversalOf, &e.VoidReason, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		e.EntryDate = e.EntryDate.UTC()
		entries = append(entries, &e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Lines, err = loadLines(ctx, tx, stagingTables, e.ID); err != nil {
			return nil, err
		}
		if e.Adjustments, err = loadAdjustments(ctx, tx, stagingTables, e.ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
