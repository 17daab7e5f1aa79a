package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/matcher"
	"ledger-recon/internal/resolver"
)

func TestEscalationService_Escalate(t *testing.T) {
	m := seededStore(t)
	ctx := context.Background()
	require.NoError(t, m.SaveEntity(ctx, &domain.Entity{
		ID: "s1", TenantID: tenant, Kind: domain.Creditor, Name: "Eskom Ltd", IsActive: true,
	}))
	classifier := &scriptedClassifier{suggestion: &escalation.Suggestion{
		NewAccount:  &domain.NewAccountSpec{Code: "6110", Name: "Prepaid Electricity", Type: domain.Expense, ParentCode: "6000"},
		Confidence:  75,
		Explanation: "prepaid electricity purchase",
	}}
	svc := NewEscalationService(classifier, m, m, matcher.DefaultConfig(), resolver.DefaultConfig())

	result, err := svc.Escalate(ctx, EscalateRequest{
		TenantID:    tenant,
		Transaction: debit("t1", "ESKOM PREPAID 123", "100"),
		Feedback:    "this is not a utility bill",
		History: []escalation.Turn{
			{Role: "user", Text: "classify ESKOM PREPAID 123"},
			{Role: "model", Text: "6100 Electricity"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Suggestion)
	assert.Equal(t, "6110", result.Suggestion.NewAccount.Code)
	require.NotNil(t, result.Entity)
	assert.Equal(t, "s1", result.Entity.Entity.ID)

	require.Len(t, result.History, 4)
	assert.Equal(t, "6100 Electricity", result.History[1].Text)
	assert.Equal(t, "prepaid electricity purchase", result.History[3].Text)

	require.Equal(t, 1, classifier.calls())
	req := classifier.requests[0]
	assert.Equal(t, "this is not a utility bill", req.Feedback)
	assert.Equal(t, tenant, req.Transaction.TenantID)
	require.NotNil(t, req.BankAccount)
	assert.Equal(t, "1000", req.BankAccount.Code)
}

func TestEscalationService_Escalate_Errors(t *testing.T) {
	m := seededStore(t)
	ctx := context.Background()

	failing := &scriptedClassifier{err: &domain.EscalationFailureError{TransactionID: "t1", Attempts: 3, Err: errUnavailable}}
	svc := NewEscalationService(failing, m, nil, matcher.DefaultConfig(), resolver.DefaultConfig())

	_, err := svc.Escalate(ctx, EscalateRequest{TenantID: tenant, Transaction: debit("t1", "ESKOM", "100")})
	var failure *domain.EscalationFailureError
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, errUnavailable)

	_, err = svc.Escalate(ctx, EscalateRequest{TenantID: tenant, Transaction: domain.BankTransaction{ID: "t2", Description: "no amount"}})
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = svc.Escalate(ctx, EscalateRequest{Transaction: debit("t1", "ESKOM", "100")})
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, 1, failing.calls())
}

func TestEscalationService_DisabledClassifier(t *testing.T) {
	m := seededStore(t)
	svc := NewEscalationService(escalation.Disabled{}, m, nil, matcher.DefaultConfig(), resolver.DefaultConfig())

	_, err := svc.Escalate(context.Background(), EscalateRequest{TenantID: tenant, Transaction: debit("t1", "ESKOM", "100")})
	var failure *domain.EscalationFailureError
	assert.ErrorAs(t, err, &failure)
}
