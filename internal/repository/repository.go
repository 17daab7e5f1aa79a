package repository

import (
	"context"
	"time"

	"ledger-recon/internal/domain"
)

// RuleRepository stores tenant mapping rules.
type RuleRepository interface {
	// SaveRule inserts the rule or updates the existing one with the same
	// tenant, pattern and pattern type, and returns the stored id.
	SaveRule(ctx context.Context, rule *domain.MappingRule) (string, error)
	GetRule(ctx context.Context, tenantID, ruleID string) (*domain.MappingRule, error)
	// ListActiveRules orders by priority ascending, then id.
	ListActiveRules(ctx context.Context, tenantID string) ([]domain.MappingRule, error)
	IncrementMatchCount(ctx context.Context, tenantID, ruleID string, at time.Time) error
	DeactivateRule(ctx context.Context, tenantID, ruleID string) error
}

// AccountDirectory is the chart of accounts. It is read-mostly: the only
// write is the account creation used by rule learning.
type AccountDirectory interface {
	GetAccount(ctx context.Context, tenantID, accountID string) (*domain.Account, error)
	// ListAccounts orders by code.
	ListAccounts(ctx context.Context, tenantID string) ([]domain.Account, error)
	CreateAccount(ctx context.Context, tenantID string, spec domain.NewAccountSpec) (*domain.Account, error)
}

// EntityLedger exposes customers, suppliers and their outstanding documents.
// Balances only move inside journal postings.
type EntityLedger interface {
	GetEntity(ctx context.Context, tenantID, entityID string) (*domain.Entity, error)
	// ListActiveEntities orders by name, then id.
	ListActiveEntities(ctx context.Context, tenantID string, kind domain.EntityKind) ([]domain.Entity, error)
	ListOutstandingDocuments(ctx context.Context, tenantID, entityID string) ([]domain.OutstandingDocument, error)
	SaveEntity(ctx context.Context, entity *domain.Entity) error
	SaveDocument(ctx context.Context, tenantID string, doc *domain.OutstandingDocument) error
}

// JournalRepository persists journal entries. Every method is one atomic
// unit: lines, balance adjustments and status changes commit together or
// not at all.
type JournalRepository interface {
	// PostEntry writes a balanced entry as posted and applies its balance
	// adjustments. A second posting for the same tenant, source and source
	// id fails with domain.ErrDuplicatePosting.
	PostEntry(ctx context.Context, entry *domain.JournalEntry) error
	GetEntry(ctx context.Context, tenantID, entryID string) (*domain.JournalEntry, error)
	FindBySource(ctx context.Context, tenantID string, source domain.JournalSource, sourceID string) (*domain.JournalEntry, error)
	// VoidEntry marks the original void and posts its reversal.
	VoidEntry(ctx context.Context, tenantID, entryID string, reversal *domain.JournalEntry) error
	// StageEntry writes a draft entry into the session's staging area.
	StageEntry(ctx context.Context, sessionID string, entry *domain.JournalEntry) error
	// PromoteSession copies every staged entry of the session into the
	// posted ledger. Copied counts must equal staged counts or nothing is
	// written and a *domain.StagingPromotionMismatchError is returned. A
	// promoted session returns its recorded result.
	PromoteSession(ctx context.Context, tenantID, sessionID string, at time.Time) (*domain.PromotionResult, error)
}

// SessionRepository stores import sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.ImportSession) error
	GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ImportSession, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	RuleRepository
	AccountDirectory
	EntityLedger
	JournalRepository
	SessionRepository
	Close() error
}
