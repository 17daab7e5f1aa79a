package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/export"
	"ledger-recon/internal/journal"
	"ledger-recon/internal/repository"
	"ledger-recon/pkg/logger"
)

type PostingService interface {
	PostMapping(ctx context.Context, tenantID string, mapping domain.TransactionMapping, entityID string) (*domain.JournalEntry, error)
	PostBill(ctx context.Context, tenantID string, bill journal.Bill) (*domain.JournalEntry, error)
	PostPayment(ctx context.Context, tenantID string, payment journal.Payment) (*domain.JournalEntry, error)
	Void(ctx context.Context, tenantID, entryID, reason string) (*domain.JournalEntry, error)
	Stage(ctx context.Context, tenantID, sessionID string, mapping domain.TransactionMapping, entityID string) (*domain.JournalEntry, error)
	Promote(ctx context.Context, tenantID, sessionID string) (*domain.PromotionResult, error)
	GetEntry(ctx context.Context, tenantID, entryID string) (*domain.JournalEntry, error)
	FindEntryBySource(ctx context.Context, tenantID string, source domain.JournalSource, sourceID string) (*domain.JournalEntry, error)
	CreateSession(ctx context.Context, tenantID string) (*domain.ImportSession, error)
	GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ImportSession, error)
}

// LedgerRepository is what posting needs from a store.
type LedgerRepository interface {
	repository.JournalRepository
	repository.SessionRepository
}

type postingService struct {
	ledger   LedgerRepository
	accounts repository.AccountDirectory
	exporter export.Exporter
	locks    *keyedLocks
	now      func() time.Time
}

func NewPostingService(ledger LedgerRepository, accounts repository.AccountDirectory, exporter export.Exporter) PostingService {
	if exporter == nil {
		exporter = export.Nop{}
	}
	return &postingService{
		ledger:   ledger,
		accounts: accounts,
		exporter: exporter,
		locks:    newKeyedLocks(),
		now:      time.Now,
	}
}

func (s *postingService) builder(ctx context.Context, tenantID string) (*journal.Builder, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.NewValidationError("tenant is required")
	}
	accounts, err := s.accounts.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart of accounts: %w", err)
	}
	return journal.NewBuilder(tenantID, accounts), nil
}

func (s *postingService) PostMapping(ctx context.Context, tenantID string, mapping domain.TransactionMapping, entityID string) (*domain.JournalEntry, error) {
	b, err := s.builder(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entry, err := b.FromMapping(mapping, entityID)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, entry)
}

func (s *postingService) PostBill(ctx context.Context, tenantID string, bill journal.Bill) (*domain.JournalEntry, error) {
	b, err := s.builder(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entry, err := b.ForBill(bill)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, entry)
}

func (s *postingService) PostPayment(ctx context.Context, tenantID string, payment journal.Payment) (*domain.JournalEntry, error) {
	b, err := s.builder(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entry, err := b.ForPayment(payment)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, entry)
}

func (s *postingService) post(ctx context.Context, entry *domain.JournalEntry) (*domain.JournalEntry, error) {
	unlock := s.locks.Lock(postingKeys(entry))
	err := s.ledger.PostEntry(ctx, entry)
	unlock()
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id": entry.TenantID,
		"entry_id":  entry.ID,
		"source":    entry.Source,
		"source_id": entry.SourceID,
		"total":     entry.TotalDebit.StringFixed(2),
	}).Info("Journal entry posted")

	s.export(ctx, *entry)
	return entry, nil
}

func (s *postingService) Void(ctx context.Context, tenantID, entryID, reason string) (*domain.JournalEntry, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("void reason is required")
	}
	original, err := s.ledger.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	b, err := s.builder(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	reversal, err := b.Reversal(*original, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(append(postingKeys(original), postingKeys(reversal)...))
	err = s.ledger.VoidEntry(ctx, tenantID, entryID, reversal)
	unlock()
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":   tenantID,
		"entry_id":    entryID,
		"reversal_id": reversal.ID,
	}).Info("Journal entry voided")

	s.export(ctx, *reversal)
	return reversal, nil
}

func (s *postingService) Stage(ctx context.Context, tenantID, sessionID string, mapping domain.TransactionMapping, entityID string) (*domain.JournalEntry, error) {
	b, err := s.builder(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entry, err := b.FromMapping(mapping, entityID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock([]string{tenantID + "|session|" + sessionID})
	defer unlock()
	if err := s.ledger.StageEntry(ctx, sessionID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *postingService) Promote(ctx context.Context, tenantID, sessionID string) (*domain.PromotionResult, error) {
	unlock := s.locks.Lock([]string{tenantID + "|session|" + sessionID})
	prior, err := s.ledger.GetSession(ctx, tenantID, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	result, err := s.ledger.PromoteSession(ctx, tenantID, sessionID, s.now().UTC())
	unlock()
	if err != nil {
		var mismatch *domain.StagingPromotionMismatchError
		if errors.As(err, &mismatch) {
			logger.GetLogger().WithError(err).WithField("session_id", sessionID).Error("Staging promotion aborted")
		}
		return nil, err
	}
	if prior.Status == domain.SessionPromoted {
		return result, nil
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":  tenantID,
		"session_id": sessionID,
		"entries":    result.Entries,
		"lines":      result.Lines,
	}).Info("Import session promoted")

	var entries []domain.JournalEntry
	for _, id := range result.EntryIDs {
		e, err := s.ledger.GetEntry(ctx, tenantID, id)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("entry_id", id).Warn("Failed to load promoted entry for export")
			continue
		}
		entries = append(entries, *e)
	}
	s.export(ctx, entries...)
	return result, nil
}

func (s *postingService) GetEntry(ctx context.Context, tenantID, entryID string) (*domain.JournalEntry, error) {
	return s.ledger.GetEntry(ctx, tenantID, entryID)
}

// FindEntryBySource returns the entry posted for a source document, such as
// the bank transaction a mapping was posted from.
func (s *postingService) FindEntryBySource(ctx context.Context, tenantID string, source domain.JournalSource, sourceID string) (*domain.JournalEntry, error) {
	if source == "" || strings.TrimSpace(sourceID) == "" {
		return nil, domain.NewValidationError("source and source_id are required")
	}
	return s.ledger.FindBySource(ctx, tenantID, source, sourceID)
}

func (s *postingService) CreateSession(ctx context.Context, tenantID string) (*domain.ImportSession, error) {
	session := &domain.ImportSession{TenantID: tenantID, CreatedAt: s.now().UTC()}
	if err := s.ledger.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *postingService) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ImportSession, error) {
	return s.ledger.GetSession(ctx, tenantID, sessionID)
}

// export is best effort. The ledger has already committed.
func (s *postingService) export(ctx context.Context, entries ...domain.JournalEntry) {
	if len(entries) == 0 {
		return
	}
	if err := s.exporter.ExportEntries(ctx, entries); err != nil {
		logger.GetLogger().WithError(err).WithField("entries", len(entries)).Warn("Failed to export journal entries")
	}
}
