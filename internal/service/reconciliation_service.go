package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/matcher"
	"ledger-recon/internal/parser"
	"ledger-recon/internal/repository"
	"ledger-recon/internal/resolver"
	"ledger-recon/internal/statement"
	"ledger-recon/pkg/logger"
)

// ProcessRequest is one batch of bank transactions for a tenant. When
// SessionID is set, auto-mapped transactions are staged into that import
// session.
type ProcessRequest struct {
	TenantID     string                   `json:"tenant_id"`
	Transactions []domain.BankTransaction `json:"transactions"`
	SessionID    string                   `json:"session_id,omitempty"`
}

// ProcessedTransaction is a classification with the context gathered around it.
type ProcessedTransaction struct {
	matcher.Classification
	Entity        *resolver.Match        `json:"entity,omitempty"`
	Suggestion    *escalation.Suggestion `json:"suggestion,omitempty"`
	StagedEntryID string                 `json:"staged_entry_id,omitempty"`
}

type ProcessResult struct {
	TenantID      string                 `json:"tenant_id"`
	SessionID     string                 `json:"session_id,omitempty"`
	Results       []ProcessedTransaction `json:"results"`
	Stats         matcher.BatchStats     `json:"stats"`
	RuleConflicts []string               `json:"rule_conflicts,omitempty"`
}

type ReconciliationService interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	ImportStatement(ctx context.Context, tenantID, location, sessionID string) (*ProcessResult, error)
}

// ReconciliationOptions tunes batch processing.
type ReconciliationOptions struct {
	Matching     matcher.Config
	Resolver     resolver.Config
	AutoEscalate bool
	BatchSize    int
}

type reconciliationService struct {
	rules      repository.RuleRepository
	accounts   repository.AccountDirectory
	entities   resolver.EntitySource
	posting    PostingService
	classifier escalation.Classifier
	opener     *statement.Opener
	opts       ReconciliationOptions
}

// NewReconciliationService wires the batch pipeline. posting and classifier
// may be nil, which disables auto-staging and inline escalation.
func NewReconciliationService(
	rules repository.RuleRepository,
	accounts repository.AccountDirectory,
	entities resolver.EntitySource,
	posting PostingService,
	classifier escalation.Classifier,
	opener *statement.Opener,
	opts ReconciliationOptions,
) ReconciliationService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opener == nil {
		opener = statement.NewOpener(nil, "")
	}
	return &reconciliationService{
		rules:      rules,
		accounts:   accounts,
		entities:   entities,
		posting:    posting,
		classifier: classifier,
		opener:     opener,
		opts:       opts,
	}
}

// Process classifies the batch against one snapshot of rules and accounts.
// Per-transaction failures never fail the batch: they are logged and routed
// to escalation, so every transaction lands in exactly one bucket.
func (s *reconciliationService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, domain.NewValidationError("tenant is required")
	}
	if req.SessionID != "" && s.posting == nil {
		return nil, domain.NewValidationError("staging is not available")
	}
	start := time.Now()

	rules, err := s.rules.ListActiveRules(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping rules: %w", err)
	}
	accounts, err := s.accounts.ListAccounts(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart of accounts: %w", err)
	}

	cfg := s.opts.Matching
	snap := matcher.NewSnapshot(req.TenantID, rules, accounts, cfg)
	pipeline := matcher.NewPipeline(cfg, snap)

	var res *resolver.Resolver
	if s.entities != nil {
		res = resolver.New(resolver.NewCache(s.entities), s.opts.Resolver)
	}

	txs := make([]domain.BankTransaction, len(req.Transactions))
	for i, tx := range req.Transactions {
		tx.TenantID = req.TenantID
		txs[i] = tx
	}
	classified, _ := pipeline.ClassifyBatch(ctx, txs)

	results := make([]ProcessedTransaction, len(classified))
	for i := range classified {
		results[i] = ProcessedTransaction{Classification: classified[i]}
	}

	errs := matcher.Parallel(ctx, len(results), cfg.Workers, func(ctx context.Context, i int) error {
		if results[i].Error != "" {
			return nil
		}
		s.enrich(ctx, req, snap, res, &results[i])
		return nil
	})
	for i, err := range errs {
		if err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", txs[i].ID).Warn("Failed to enrich transaction")
		}
	}

	// Staging can move a transaction to review, so the batch is counted
	// after enrichment.
	classifications := make([]matcher.Classification, len(results))
	for i := range results {
		classifications[i] = results[i].Classification
	}
	stats := matcher.Tally(classifications, time.Since(start), cfg.EscalationCostPerTx)

	s.recordRuleMatches(ctx, req.TenantID, classifications)

	result := &ProcessResult{
		TenantID:  req.TenantID,
		SessionID: req.SessionID,
		Results:   results,
		Stats:     stats,
	}
	for _, c := range snap.Conflicts() {
		result.RuleConflicts = append(result.RuleConflicts, c.Error())
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":        req.TenantID,
		"total":            stats.Total,
		"auto_mapped":      stats.AutoMapped,
		"needs_review":     stats.NeedsReview,
		"needs_escalation": stats.NeedsEscalation,
		"failed":           stats.Failed,
		"elapsed_ms":       stats.Elapsed.Milliseconds(),
	}).Info("Batch classified")

	return result, nil
}

// enrich adds entity context, stages auto-mapped entries and escalates when
// configured. None of these steps can fail the transaction.
func (s *reconciliationService) enrich(ctx context.Context, req ProcessRequest, snap *matcher.Snapshot, res *resolver.Resolver, item *ProcessedTransaction) {
	tx := item.Transaction

	if res != nil {
		amount, date := tx.Amount(), tx.Date
		match, err := res.FindMatch(ctx, req.TenantID, resolver.Query{
			Description: tx.Description,
			Kind:        tx.CounterpartyKind(),
			Amount:      &amount,
			Date:        &date,
		})
		if err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", tx.ID).Warn("Entity resolution failed")
		} else if match != nil {
			item.Entity = match
			item.Reasoning = append(item.Reasoning, fmt.Sprintf("counterparty %s matched on %s (confidence %.0f)",
				match.Entity.Name, match.Field, match.Confidence))
		}
	}

	switch item.Decision {
	case domain.DecisionAutoMapped:
		if req.SessionID != "" {
			s.stage(ctx, req, item)
		}
	case domain.DecisionNeedsEscalation:
		if s.opts.AutoEscalate && s.classifier != nil {
			s.escalate(ctx, req.TenantID, snap, item)
		}
	}
}

// stage moves the transaction to review when its entry cannot be staged.
func (s *reconciliationService) stage(ctx context.Context, req ProcessRequest, item *ProcessedTransaction) {
	// The counterparty balance only moves when the payment settles a
	// suggested document.
	entityID := ""
	if item.Entity != nil && item.Entity.Document != nil {
		entityID = item.Entity.Entity.ID
	}

	entry, err := s.posting.Stage(ctx, req.TenantID, req.SessionID, *item.Mapping, entityID)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("transaction_id", item.Transaction.ID).Warn("Failed to stage auto-mapped transaction")
		item.Decision = domain.DecisionNeedsReview
		item.Reasoning = append(item.Reasoning, "staging failed: "+err.Error())
		return
	}
	item.StagedEntryID = entry.ID
}

func (s *reconciliationService) escalate(ctx context.Context, tenantID string, snap *matcher.Snapshot, item *ProcessedTransaction) {
	var entity *resolver.EntityMatch
	if item.Entity != nil {
		entity = &item.Entity.EntityMatch
	}

	suggestion, err := s.classifier.Classify(ctx, escalation.Request{
		TenantID:    tenantID,
		Transaction: item.Transaction,
		Accounts:    snap.Accounts(),
		BankAccount: snap.BankAccount(),
		Entity:      entity,
		Reasoning:   item.Reasoning,
		Session:     escalation.NewSession(tenantID, item.Transaction.ID),
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("transaction_id", item.Transaction.ID).Warn("Escalation failed, leaving transaction for manual handling")
		item.Reasoning = append(item.Reasoning, "escalation failed: "+err.Error())
		return
	}
	item.Suggestion = suggestion
	item.Reasoning = append(item.Reasoning, fmt.Sprintf("escalation suggested a mapping with confidence %d", suggestion.Confidence))
}

// recordRuleMatches bumps usage counters for rules that fired. It is best
// effort: a failed counter update is logged and never changes the batch.
func (s *reconciliationService) recordRuleMatches(ctx context.Context, tenantID string, results []matcher.Classification) {
	at := time.Now().UTC()
	for _, r := range results {
		if r.Mapping == nil || r.Mapping.RuleID == "" {
			continue
		}
		if err := s.rules.IncrementMatchCount(ctx, tenantID, r.Mapping.RuleID, at); err != nil {
			logger.GetLogger().WithError(err).WithField("rule_id", r.Mapping.RuleID).Warn("Failed to record rule match")
		}
	}
}

// ImportStatement reads a CSV statement from the import directory or a
// gs:// location and processes it as one batch.
func (s *reconciliationService) ImportStatement(ctx context.Context, tenantID, location, sessionID string) (*ProcessResult, error) {
	rc, err := s.opener.Open(ctx, location)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	defer rc.Close()

	var txs []domain.BankTransaction
	err = parser.NewCSVStatementParser(tenantID).Parse(rc, s.opts.BatchSize, func(batch []domain.BankTransaction) error {
		txs = append(txs, batch...)
		return nil
	})
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	logger.GetLogger().WithField("location", location).WithField("transactions", len(txs)).Info("Statement parsed")
	return s.Process(ctx, ProcessRequest{TenantID: tenantID, Transactions: txs, SessionID: sessionID})
}
