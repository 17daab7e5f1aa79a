// Package escalation asks an external model to classify transactions the
// matching pipeline could not map with enough confidence.
package escalation

import (
	"context"
	"sync"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/resolver"
)

// Request is everything the collaborator may see for one transaction.
type Request struct {
	TenantID    string                 `json:"tenant_id"`
	Transaction domain.BankTransaction `json:"transaction"`
	Accounts    []domain.Account       `json:"-"`
	BankAccount *domain.Account        `json:"-"`
	Entity      *resolver.EntityMatch  `json:"entity,omitempty"`
	Reasoning   []string               `json:"reasoning,omitempty"`
	Feedback    string                 `json:"feedback,omitempty"`
	Session     *Session               `json:"-"`
}

// Suggestion is the collaborator's answer. Mapping is nil when it could not
// name an account from the chart; NewAccount is set when it proposes one.
type Suggestion struct {
	Mapping     *domain.TransactionMapping `json:"mapping,omitempty"`
	NewAccount  *domain.NewAccountSpec     `json:"new_account,omitempty"`
	Confidence  int                        `json:"confidence"`
	Explanation string                     `json:"explanation"`
}

// Classifier is the external classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Suggestion, error)
}

// Turn is one message of an escalation conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Session carries the conversation for a single escalation. It is created
// per request and never shared across tenants or transactions.
type Session struct {
	TenantID      string
	TransactionID string

	mu    sync.Mutex
	turns []Turn
}

func NewSession(tenantID, transactionID string) *Session {
	return &Session{TenantID: tenantID, TransactionID: transactionID}
}

// Append records a turn.
func (s *Session) Append(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text})
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Disabled is used when no collaborator is configured.
type Disabled struct{}

func (Disabled) Classify(ctx context.Context, req Request) (*Suggestion, error) {
	return nil, &domain.EscalationFailureError{TransactionID: req.Transaction.ID, Err: errNotConfigured}
}
