package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind separates customers from suppliers.
type EntityKind string

const (
	Debtor   EntityKind = "debtor"
	Creditor EntityKind = "creditor"
)

// Entity is a counterparty owned by the ledger of record.
type Entity struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Kind           EntityKind      `json:"kind"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Type           string          `json:"type,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
}

// DocumentStatus is the lifecycle status of an outstanding document.
type DocumentStatus string

const (
	DocumentSent          DocumentStatus = "sent"
	DocumentPartiallyPaid DocumentStatus = "partially-paid"
	DocumentOverdue       DocumentStatus = "overdue"
	DocumentPaid          DocumentStatus = "paid"
	DocumentDraft         DocumentStatus = "draft"
)

// DocumentKind is invoice for debtors and bill for creditors.
type DocumentKind string

const (
	Invoice DocumentKind = "invoice"
	Bill    DocumentKind = "bill"
)

// OutstandingDocument is an unpaid invoice or bill. Read-only to this engine.
type OutstandingDocument struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entity_id"`
	Kind      DocumentKind    `json:"kind"`
	Number    string          `json:"number"`
	AmountDue decimal.Decimal `json:"amount_due"`
	IssueDate time.Time       `json:"issue_date"`
	DueDate   time.Time       `json:"due_date"`
	Status    DocumentStatus  `json:"status"`
}

// BalanceAdjustment moves an entity's running balance as part of a posting.
type BalanceAdjustment struct {
	EntityID string          `json:"entity_id"`
	Amount   decimal.Decimal `json:"amount"`
	Increase bool            `json:"increase"`
}

// Signed returns the adjustment as a signed delta.
func (a BalanceAdjustment) Signed() decimal.Decimal {
	if a.Increase {
		return a.Amount
	}
	return a.Amount.Neg()
}

// Inverse returns the adjustment that undoes this one.
func (a BalanceAdjustment) Inverse() BalanceAdjustment {
	return BalanceAdjustment{EntityID: a.EntityID, Amount: a.Amount, Increase: !a.Increase}
}
