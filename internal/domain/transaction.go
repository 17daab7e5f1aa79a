package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is a raw bank feed line. It is never mutated by the engine.
type BankTransaction struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	Date         time.Time        `json:"date"`
	Description  string           `json:"description"`
	DebitAmount  *decimal.Decimal `json:"debit_amount,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
	Category     string           `json:"category,omitempty"`
	Reference    string           `json:"reference,omitempty"`
}

// Validate checks that exactly one of debit/credit is set, positive and in
// whole cents.
func (t BankTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return NewValidationError("transaction id is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return NewValidationError(fmt.Sprintf("transaction %s: description is required", t.ID))
	}

	hasDebit := t.DebitAmount != nil
	hasCredit := t.CreditAmount != nil
	if hasDebit == hasCredit {
		return NewValidationError(fmt.Sprintf("transaction %s: exactly one of debit or credit amount must be set", t.ID))
	}
	if hasDebit && !t.DebitAmount.IsPositive() {
		return NewValidationError(fmt.Sprintf("transaction %s: debit amount must be positive", t.ID))
	}
	if hasCredit && !t.CreditAmount.IsPositive() {
		return NewValidationError(fmt.Sprintf("transaction %s: credit amount must be positive", t.ID))
	}
	if amount := t.Amount(); !amount.Equal(amount.Round(2)) {
		return NewValidationError(fmt.Sprintf("transaction %s: amount %s has more than 2 decimal places", t.ID, amount))
	}
	return nil
}

// IsMoneyOut reports whether the bank account was debited (a payment).
func (t BankTransaction) IsMoneyOut() bool {
	return t.DebitAmount != nil
}

// Amount returns the absolute transaction amount.
func (t BankTransaction) Amount() decimal.Decimal {
	if t.DebitAmount != nil {
		return *t.DebitAmount
	}
	if t.CreditAmount != nil {
		return *t.CreditAmount
	}
	return decimal.Zero
}

// CounterpartyKind is the entity class a transaction is matched against:
// receipts come from debtors, payments go to creditors.
func (t BankTransaction) CounterpartyKind() EntityKind {
	if t.IsMoneyOut() {
		return Creditor
	}
	return Debtor
}

// NewDebit builds a money-out transaction.
func NewDebit(id, description string, amount decimal.Decimal, date time.Time) BankTransaction {
	return BankTransaction{ID: id, Description: description, DebitAmount: &amount, Date: date}
}

// NewCredit builds a money-in transaction.
func NewCredit(id, description string, amount decimal.Decimal, date time.Time) BankTransaction {
	return BankTransaction{ID: id, Description: description, CreditAmount: &amount, Date: date}
}
