package domain

import "time"

// AccountType is the accounting class of an account.
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Income    AccountType = "income"
	Expense   AccountType = "expense"
)

// Valid reports whether the account type is known.
func (t AccountType) Valid() bool {
	switch t {
	case Asset, Liability, Equity, Income, Expense:
		return true
	}
	return false
}

// AccountRef identifies an account by both its id and its code. Both are
// filled from the account directory so they cannot drift apart.
type AccountRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// IsZero reports whether neither identifier is set.
func (r AccountRef) IsZero() bool {
	return r.ID == "" && r.Code == ""
}

// Account is a chart-of-accounts entry.
type Account struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenant_id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	ParentCode string      `json:"parent_code,omitempty"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Ref returns the resolved reference for the account.
func (a Account) Ref() AccountRef {
	return AccountRef{ID: a.ID, Code: a.Code}
}

// NewAccountSpec describes an account to be created by the rule learning loop.
type NewAccountSpec struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	ParentCode string      `json:"parent_code,omitempty"`
}

// Validate checks the minimal fields for account creation.
func (s NewAccountSpec) Validate() error {
	if s.Code == "" {
		return NewValidationError("new account code is required")
	}
	if s.Name == "" {
		return NewValidationError("new account name is required")
	}
	if !s.Type.Valid() {
		return NewValidationError("invalid account type: " + string(s.Type))
	}
	return nil
}
