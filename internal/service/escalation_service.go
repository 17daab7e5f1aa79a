package service

import (
	"context"
	"fmt"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/matcher"
	"ledger-recon/internal/repository"
	"ledger-recon/internal/resolver"
	"ledger-recon/pkg/logger"
)

// EscalateRequest asks the collaborator about one transaction. History
// carries the turns of this escalation only, so a reviewer can send feedback
// on a previous answer without any state kept between calls.
type EscalateRequest struct {
	TenantID    string                 `json:"tenant_id"`
	Transaction domain.BankTransaction `json:"transaction"`
	Reasoning   []string               `json:"reasoning,omitempty"`
	Feedback    string                 `json:"feedback,omitempty"`
	History     []escalation.Turn      `json:"history,omitempty"`
}

type EscalateResult struct {
	Suggestion *escalation.Suggestion `json:"suggestion"`
	Entity     *resolver.EntityMatch  `json:"entity,omitempty"`
	History    []escalation.Turn      `json:"history"`
}

type EscalationService interface {
	Escalate(ctx context.Context, req EscalateRequest) (*EscalateResult, error)
}

type escalationService struct {
	classifier escalation.Classifier
	accounts   repository.AccountDirectory
	entities   resolver.EntitySource
	matchCfg   matcher.Config
	resolveCfg resolver.Config
}

func NewEscalationService(
	classifier escalation.Classifier,
	accounts repository.AccountDirectory,
	entities resolver.EntitySource,
	matchCfg matcher.Config,
	resolveCfg resolver.Config,
) EscalationService {
	return &escalationService{
		classifier: classifier,
		accounts:   accounts,
		entities:   entities,
		matchCfg:   matchCfg,
		resolveCfg: resolveCfg,
	}
}

func (s *escalationService) Escalate(ctx context.Context, req EscalateRequest) (*EscalateResult, error) {
	if req.TenantID == "" {
		return nil, domain.NewValidationError("tenant is required")
	}
	if err := req.Transaction.Validate(); err != nil {
		return nil, err
	}
	req.Transaction.TenantID = req.TenantID

	accounts, err := s.accounts.ListAccounts(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	snap := matcher.NewSnapshot(req.TenantID, nil, accounts, s.matchCfg)

	var entity *resolver.EntityMatch
	if s.entities != nil {
		match, err := resolver.New(s.entities, s.resolveCfg).FindMatch(ctx, req.TenantID, resolver.Query{
			Description: req.Transaction.Description,
			Kind:        req.Transaction.CounterpartyKind(),
		})
		if err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", req.Transaction.ID).Warn("Entity resolution failed, escalating without entity")
		} else if match != nil {
			entity = &match.EntityMatch
		}
	}

	return s.escalate(ctx, req, snap, entity)
}

func (s *escalationService) escalate(ctx context.Context, req EscalateRequest, snap *matcher.Snapshot, entity *resolver.EntityMatch) (*EscalateResult, error) {
	session := escalation.NewSession(req.TenantID, req.Transaction.ID)
	for _, t := range req.History {
		session.Append(t.Role, t.Text)
	}

	suggestion, err := s.classifier.Classify(ctx, escalation.Request{
		TenantID:    req.TenantID,
		Transaction: req.Transaction,
		Accounts:    snap.Accounts(),
		BankAccount: snap.BankAccount(),
		Entity:      entity,
		Reasoning:   req.Reasoning,
		Feedback:    req.Feedback,
		Session:     session,
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":      req.TenantID,
		"transaction_id": req.Transaction.ID,
		"confidence":     suggestion.Confidence,
		"new_account":    suggestion.NewAccount != nil,
	}).Info("Escalation answered")

	return &EscalateResult{Suggestion: suggestion, Entity: entity, History: session.Turns()}, nil
}
