// Package journal builds balanced double-entry journal entries from
// classified transactions, bills, payments and voids.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
)

// BillLine is one expense line of a supplier bill.
type BillLine struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Bill is a supplier bill to be recorded against accounts payable.
type Bill struct {
	ID                 string          `json:"id"`
	EntityID           string          `json:"entity_id"`
	Number             string          `json:"number"`
	Date               time.Time       `json:"date"`
	Description        string          `json:"description"`
	Lines              []BillLine      `json:"lines"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TaxAccountCode     string          `json:"tax_account_code,omitempty"`
	PayableAccountCode string          `json:"payable_account_code"`
}

// Payment settles a bill (creditor) or an invoice (debtor) through the bank.
type Payment struct {
	ID                 string            `json:"id"`
	EntityID           string            `json:"entity_id"`
	Kind               domain.EntityKind `json:"kind"`
	DocumentID         string            `json:"document_id,omitempty"`
	Date               time.Time         `json:"date"`
	Amount             decimal.Decimal   `json:"amount"`
	Reference          string            `json:"reference,omitempty"`
	BankAccountCode    string            `json:"bank_account_code"`
	ControlAccountCode string            `json:"control_account_code"`
}

// Builder turns business events into journal entries using a tenant's chart
// to name each line.
type Builder struct {
	tenantID string
	byCode   map[string]domain.Account
	byID     map[string]domain.Account
	now      func() time.Time
	newID    func() string
}

func NewBuilder(tenantID string, accounts []domain.Account) *Builder {
	b := &Builder{
		tenantID: tenantID,
		byCode:   make(map[string]domain.Account, len(accounts)),
		byID:     make(map[string]domain.Account, len(accounts)),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, a := range accounts {
		b.byCode[a.Code] = a
		b.byID[a.ID] = a
	}
	return b
}

func (b *Builder) account(ref domain.AccountRef) (domain.Account, error) {
	if ref.ID != "" {
		a, ok := b.byID[ref.ID]
		if !ok || (ref.Code != "" && a.Code != ref.Code) {
			return domain.Account{}, domain.NewValidationError(fmt.Sprintf("unknown account %s/%s", ref.ID, ref.Code))
		}
		return a, nil
	}
	a, ok := b.byCode[ref.Code]
	if !ok {
		return domain.Account{}, domain.NewValidationError("unknown account code: " + ref.Code)
	}
	return a, nil
}

func (b *Builder) line(ref domain.AccountRef, debit, credit decimal.Decimal, description string) (domain.JournalLine, error) {
	a, err := b.account(ref)
	if err != nil {
		return domain.JournalLine{}, err
	}
	return domain.JournalLine{
		AccountCode: a.Code,
		AccountName: a.Name,
		Debit:       debit.Round(2),
		Credit:      credit.Round(2),
		Description: description,
	}, nil
}

func (b *Builder) entry(source domain.JournalSource, sourceID string, date time.Time, description string, lines []domain.JournalLine) *domain.JournalEntry {
	e := &domain.JournalEntry{
		ID:          b.newID(),
		TenantID:    b.tenantID,
		EntryDate:   date,
		Source:      source,
		SourceID:    sourceID,
		Description: description,
		Lines:       lines,
		Status:      domain.JournalDraft,
		CreatedAt:   b.now().UTC(),
	}
	e.TotalDebit, e.TotalCredit = e.Totals()
	return e
}

// FromMapping builds the two-line entry for a classified bank transaction.
// When entityID is set the counterparty's balance is reduced by the amount.
func (b *Builder) FromMapping(m domain.TransactionMapping, entityID string) (*domain.JournalEntry, error) {
	tx := m.Transaction
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	amount := tx.Amount()

	debit, err := b.line(m.DebitAccount, amount, decimal.Zero, tx.Description)
	if err != nil {
		return nil, err
	}
	credit, err := b.line(m.CreditAccount, decimal.Zero, amount, tx.Description)
	if err != nil {
		return nil, err
	}
	if tx.Reference != "" {
		dims := map[string]string{"reference": tx.Reference}
		debit.Dimensions, credit.Dimensions = dims, dims
	}

	e := b.entry(domain.JournalSourceBankTransaction, tx.ID, tx.Date, tx.Description, []domain.JournalLine{debit, credit})
	if entityID != "" {
		e.Adjustments = []domain.BalanceAdjustment{{EntityID: entityID, Amount: amount.Round(2), Increase: false}}
	}
	return validated(e)
}

// ForBill debits each expense line and the tax receivable, and credits
// accounts payable for the bill total. The supplier balance grows by the
// total.
func (b *Builder) ForBill(bill Bill) (*domain.JournalEntry, error) {
	if bill.ID == "" || bill.EntityID == "" {
		return nil, domain.NewValidationError("bill id and entity are required")
	}
	if len(bill.Lines) == 0 {
		return nil, domain.NewValidationError("bill has no lines")
	}
	if bill.PayableAccountCode == "" {
		return nil, domain.NewValidationError("bill payable account is required")
	}

	lines := make([]domain.JournalLine, 0, len(bill.Lines)+2)
	total := decimal.Zero
	for i, bl := range bill.Lines {
		if !bl.Amount.IsPositive() {
			return nil, domain.NewValidationError(fmt.Sprintf("bill line %d: amount must be positive", i+1))
		}
		l, err := b.line(domain.AccountRef{Code: bl.AccountCode}, bl.Amount, decimal.Zero, bl.Description)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
		total = total.Add(l.Debit)
	}

	if bill.TaxAmount.IsNegative() {
		return nil, domain.NewValidationError("bill tax amount must not be negative")
	}
	if bill.TaxAmount.IsPositive() {
		if bill.TaxAccountCode == "" {
			return nil, domain.NewValidationError("bill tax account is required when tax is charged")
		}
		l, err := b.line(domain.AccountRef{Code: bill.TaxAccountCode}, bill.TaxAmount, decimal.Zero, "Input tax")
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
		total = total.Add(l.Debit)
	}

	ap, err := b.line(domain.AccountRef{Code: bill.PayableAccountCode}, decimal.Zero, total, "Bill "+bill.Number)
	if err != nil {
		return nil, err
	}
	lines = append(lines, ap)
	for i := range lines {
		lines[i].Dimensions = map[string]string{"entity_id": bill.EntityID, "bill_id": bill.ID}
	}

	description := bill.Description
	if description == "" {
		description = "Bill " + bill.Number
	}
	e := b.entry(domain.JournalSourceBill, bill.ID, bill.Date, description, lines)
	e.Adjustments = []domain.BalanceAdjustment{{EntityID: bill.EntityID, Amount: total, Increase: true}}
	return validated(e)
}

// ForPayment debits payables and credits the bank for a supplier payment,
// or debits the bank and credits receivables for a customer receipt. The
// counterparty balance drops by the amount.
func (b *Builder) ForPayment(p Payment) (*domain.JournalEntry, error) {
	if p.ID == "" || p.EntityID == "" {
		return nil, domain.NewValidationError("payment id and entity are required")
	}
	if !p.Amount.IsPositive() {
		return nil, domain.NewValidationError("payment amount must be positive")
	}
	bank := domain.AccountRef{Code: p.BankAccountCode}
	control := domain.AccountRef{Code: p.ControlAccountCode}

	var debitRef, creditRef domain.AccountRef
	switch p.Kind {
	case domain.Creditor:
		debitRef, creditRef = control, bank
	case domain.Debtor:
		debitRef, creditRef = bank, control
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("invalid entity kind %q", p.Kind))
	}

	description := fmt.Sprintf("Payment %s", p.Reference)
	if p.Kind == domain.Debtor {
		description = fmt.Sprintf("Receipt %s", p.Reference)
	}
	debit, err := b.line(debitRef, p.Amount, decimal.Zero, description)
	if err != nil {
		return nil, err
	}
	credit, err := b.line(creditRef, decimal.Zero, p.Amount, description)
	if err != nil {
		return nil, err
	}
	dims := map[string]string{"entity_id": p.EntityID}
	if p.DocumentID != "" {
		dims["document_id"] = p.DocumentID
	}
	debit.Dimensions, credit.Dimensions = dims, dims

	e := b.entry(domain.JournalSourcePayment, p.ID, p.Date, description, []domain.JournalLine{debit, credit})
	e.Adjustments = []domain.BalanceAdjustment{{EntityID: p.EntityID, Amount: p.Amount.Round(2), Increase: false}}
	return validated(e)
}

// Reversal mirrors a posted entry: every debit becomes a credit and every
// balance adjustment is undone.
func (b *Builder) Reversal(original domain.JournalEntry, reason string, date time.Time) (*domain.JournalEntry, error) {
	if original.Status != domain.JournalPosted {
		return nil, domain.ErrAlreadyVoided
	}
	if reason == "" {
		return nil, domain.NewValidationError("void reason is required")
	}

	lines := make([]domain.JournalLine, len(original.Lines))
	for i, l := range original.Lines {
		lines[i] = domain.JournalLine{
			AccountCode: l.AccountCode,
			AccountName: l.AccountName,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: "Reversal: " + l.Description,
			Dimensions:  l.Dimensions,
		}
	}

	if date.IsZero() {
		date = original.EntryDate
	}
	e := b.entry(domain.JournalSourceVoid, original.ID, date, "Void of "+original.ID+": "+reason, lines)
	e.ReversalOf = original.ID
	e.VoidReason = reason
	e.TenantID = original.TenantID
	for _, adj := range original.Adjustments {
		e.Adjustments = append(e.Adjustments, adj.Inverse())
	}
	return validated(e)
}

func validated(e *domain.JournalEntry) (*domain.JournalEntry, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks that an entry balances before it is posted. Each line
// must carry exactly one positive side.
func Validate(e *domain.JournalEntry) error {
	if len(e.Lines) < 2 {
		return &domain.PostingImbalanceError{EntryID: e.ID, Reason: "an entry needs at least two lines"}
	}
	for i, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &domain.PostingImbalanceError{EntryID: e.ID, Reason: fmt.Sprintf("line %d has a negative amount", i+1)}
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return &domain.PostingImbalanceError{EntryID: e.ID, Reason: fmt.Sprintf("line %d must have exactly one of debit or credit", i+1)}
		}
	}

	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		return &domain.PostingImbalanceError{EntryID: e.ID, TotalDebit: debit, TotalCredit: credit}
	}
	e.TotalDebit, e.TotalCredit = debit, credit
	return nil
}
