package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/repository/memory"
)

const tenant = "tenant-1"

var txDate = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	m := memory.New()
	accounts := []domain.Account{
		{ID: "a-1000", Code: "1000", Name: "Bank", Type: domain.Asset},
		{ID: "a-1200", Code: "1200", Name: "Accounts Receivable", Type: domain.Asset},
		{ID: "a-2000", Code: "2000", Name: "Accounts Payable", Type: domain.Liability},
		{ID: "a-4000", Code: "4000", Name: "Sales", Type: domain.Income},
		{ID: "a-6000", Code: "6000", Name: "Operating Expenses", Type: domain.Expense},
		{ID: "a-6100", Code: "6100", Name: "Electricity", Type: domain.Expense, ParentCode: "6000"},
	}
	for i := range accounts {
		accounts[i].TenantID = tenant
		accounts[i].IsActive = true
		require.NoError(t, m.SaveAccount(&accounts[i]))
	}
	return m
}

func saveRule(t *testing.T, m *memory.Store, pattern string, pt domain.PatternType, code string) string {
	t.Helper()
	id, err := m.SaveRule(context.Background(), &domain.MappingRule{
		TenantID:    tenant,
		Pattern:     pattern,
		PatternType: pt,
		Account:     domain.AccountRef{ID: "a-" + code, Code: code},
		Priority:    domain.DefaultRulePriority,
		IsActive:    true,
	})
	require.NoError(t, err)
	return id
}

func debit(id, description, amount string) domain.BankTransaction {
	return domain.NewDebit(id, description, decimal.RequireFromString(amount), txDate)
}

func credit(id, description, amount string) domain.BankTransaction {
	return domain.NewCredit(id, description, decimal.RequireFromString(amount), txDate)
}

func electricityMapping(tx domain.BankTransaction) domain.TransactionMapping {
	return domain.TransactionMapping{
		Transaction:   tx,
		DebitAccount:  domain.AccountRef{Code: "6100"},
		CreditAccount: domain.AccountRef{Code: "1000"},
		Confidence:    100,
		Source:        domain.SourceExactMatch,
	}
}

// scriptedClassifier answers every request with the same suggestion or error
// and records what it was asked.
type scriptedClassifier struct {
	mu         sync.Mutex
	suggestion *escalation.Suggestion
	err        error
	requests   []escalation.Request
}

func (c *scriptedClassifier) Classify(_ context.Context, req escalation.Request) (*escalation.Suggestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if req.Session != nil {
		req.Session.Append("user", req.Transaction.Description)
	}
	if c.err != nil {
		return nil, c.err
	}
	if req.Session != nil {
		req.Session.Append("model", c.suggestion.Explanation)
	}
	s := *c.suggestion
	return &s, nil
}

func (c *scriptedClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type recordingExporter struct {
	mu      sync.Mutex
	batches [][]domain.JournalEntry
	err     error
}

func (e *recordingExporter) ExportEntries(_ context.Context, entries []domain.JournalEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, entries)
	return e.err
}

func (e *recordingExporter) exported() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range e.batches {
		n += len(b)
	}
	return n
}

var errUnavailable = errors.New("collaborator unavailable")
