package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicatePosting is returned when a source event already has a posted entry.
	ErrDuplicatePosting = errors.New("source already posted")

	// ErrAlreadyVoided is returned when voiding an entry that is not posted.
	ErrAlreadyVoided = errors.New("journal entry is not in posted state")

	// ErrSessionPromoted is returned when staging into a promoted session.
	ErrSessionPromoted = errors.New("import session already promoted")

	// ErrNoBankAccount is returned when no bank/cash account can be inferred.
	ErrNoBankAccount = errors.New("no bank account found in chart of accounts")
)

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

type NotFoundError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

type AlreadyExistsError struct {
	ErrorMessage
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewAlreadyExistsError(message string) *AlreadyExistsError {
	return &AlreadyExistsError{ErrorMessage: ErrorMessage{Message: message}}
}

// PostingImbalanceError aborts a posting whose debits and credits differ.
type PostingImbalanceError struct {
	EntryID     string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Reason      string
}

func (e *PostingImbalanceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("posting imbalance on entry %s: %s", e.EntryID, e.Reason)
	}
	return fmt.Sprintf("posting imbalance on entry %s: debit %s != credit %s",
		e.EntryID, e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

// StagingPromotionMismatchError aborts a promotion whose copied counts differ
// from the staged counts. The session stays pending.
type StagingPromotionMismatchError struct {
	SessionID     string
	StagedEntries int
	StagedLines   int
	CopiedEntries int
	CopiedLines   int
}

func (e *StagingPromotionMismatchError) Error() string {
	return fmt.Sprintf("staging promotion mismatch for session %s: staged %d entries/%d lines, copied %d entries/%d lines",
		e.SessionID, e.StagedEntries, e.StagedLines, e.CopiedEntries, e.CopiedLines)
}

// RuleConflictError marks a stored rule that cannot be evaluated.
type RuleConflictError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *RuleConflictError) Error() string {
	return fmt.Sprintf("rule %s has malformed pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *RuleConflictError) Unwrap() error { return e.Err }

// EscalationFailureError means the classification collaborator could not
// produce a suggestion.
type EscalationFailureError struct {
	TransactionID string
	Attempts      int
	Err           error
}

func (e *EscalationFailureError) Error() string {
	return fmt.Sprintf("escalation failed for transaction %s after %d attempt(s): %v", e.TransactionID, e.Attempts, e.Err)
}

func (e *EscalationFailureError) Unwrap() error { return e.Err }
