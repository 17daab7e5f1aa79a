package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalStatus is the lifecycle state of a journal entry.
type JournalStatus string

const (
	JournalDraft  JournalStatus = "draft"
	JournalPosted JournalStatus = "posted"
	JournalVoid   JournalStatus = "void"
)

// JournalSource names the event that produced an entry.
type JournalSource string

const (
	JournalSourceBankTransaction JournalSource = "bank-transaction"
	JournalSourceBill            JournalSource = "bill"
	JournalSourcePayment         JournalSource = "payment"
	JournalSourceVoid            JournalSource = "void"
)

// JournalLine is one side of a double-entry posting.
type JournalLine struct {
	AccountCode string            `json:"account_code"`
	AccountName string            `json:"account_name"`
	Debit       decimal.Decimal   `json:"debit"`
	Credit      decimal.Decimal   `json:"credit"`
	Description string            `json:"description,omitempty"`
	Dimensions  map[string]string `json:"dimensions,omitempty"`
}

// JournalEntry is a balanced set of lines. Once posted it is append-only.
type JournalEntry struct {
	ID          string              `json:"id"`
	TenantID    string              `json:"tenant_id"`
	EntryDate   time.Time           `json:"entry_date"`
	Source      JournalSource       `json:"source"`
	SourceID    string              `json:"source_id"`
	Description string              `json:"description"`
	Lines       []JournalLine       `json:"lines"`
	Status      JournalStatus       `json:"status"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	ReversalOf  string              `json:"reversal_of,omitempty"`
	VoidReason  string              `json:"void_reason,omitempty"`
	SessionID   string              `json:"session_id,omitempty"`
	Adjustments []BalanceAdjustment `json:"adjustments,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Totals sums the debit and credit columns of the lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Period is the fiscal period key (YYYY-MM) of the entry.
func (e JournalEntry) Period() string {
	return e.EntryDate.Format("2006-01")
}
