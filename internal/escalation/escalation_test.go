package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ledger-recon/internal/domain"
)

type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     [][]*genai.Content
	configs   []*genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.calls)
	f.calls = append(f.calls, contents)
	f.configs = append(f.configs, config)
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	text := f.responses[min(n, len(f.responses)-1)]
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}, nil
}

func accounts() []domain.Account {
	return []domain.Account{
		{ID: "a-1000", Code: "1000", Name: "FNB Cheque", Type: domain.Asset, IsActive: true},
		{ID: "a-6000", Code: "6000", Name: "Operating Expenses", Type: domain.Expense, IsActive: true},
		{ID: "a-6150", Code: "6150", Name: "Telephone", Type: domain.Expense, ParentCode: "6000", IsActive: true},
	}
}

func request() Request {
	acc := accounts()
	return Request{
		TenantID:    "t1",
		Transaction: domain.NewDebit("tx-1", "FNB Airtime Purchase 082991234", decimal.NewFromInt(150), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Accounts:    acc,
		BankAccount: &acc[0],
		Reasoning:   []string{"no tier produced a qualifying match"},
	}
}

func TestGemini_MapsSuggestedAccount(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"```json\n{\"account_code\": \"6150\", \"confidence\": 88, \"explanation\": \"Airtime is a telephone cost\", \"new_account\": null}\n```"}}
	c := NewGeminiClassifierWithGenerator(gen, "")

	s, err := c.Classify(context.Background(), request())

	require.NoError(t, err)
	require.NotNil(t, s.Mapping)
	assert.Equal(t, domain.SourceAISuggested, s.Mapping.Source)
	assert.Equal(t, 88, s.Mapping.Confidence)
	assert.Equal(t, "6150", s.Mapping.DebitAccount.Code)
	assert.Equal(t, "1000", s.Mapping.CreditAccount.Code)
	assert.Nil(t, s.NewAccount)

	require.Len(t, gen.calls, 1)
	prompt := gen.calls[0][0].Parts[0].Text
	assert.Contains(t, prompt, "FNB Airtime Purchase")
	assert.Contains(t, prompt, "150.00 (money out)")
	assert.Contains(t, prompt, "  6150 Telephone (expense)")
	assert.Equal(t, "application/json", gen.configs[0].ResponseMIMEType)
}

func TestGemini_ProposesNewAccount(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"account_code": "", "confidence": 70, "explanation": "No airtime account",
		"new_account": {"code": "6160", "name": "Airtime", "type": "Expense", "parent_code": "6000"}}`}}
	c := NewGeminiClassifierWithGenerator(gen, "gemini-test")

	s, err := c.Classify(context.Background(), request())

	require.NoError(t, err)
	assert.Nil(t, s.Mapping)
	require.NotNil(t, s.NewAccount)
	assert.Equal(t, domain.Expense, s.NewAccount.Type)
	assert.Equal(t, "6000", s.NewAccount.ParentCode)
}

func TestGemini_UnknownAccountIsNotMapped(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"account_code": "9999", "confidence": 150, "explanation": "guess"}`}}
	c := NewGeminiClassifierWithGenerator(gen, "")

	s, err := c.Classify(context.Background(), request())

	require.NoError(t, err)
	assert.Nil(t, s.Mapping)
	assert.Equal(t, 100, s.Confidence)
	assert.Contains(t, s.Explanation, "9999 is not in the chart")
}

func TestGemini_SessionCarriesTurnsForOneEscalation(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"account_code": "6000", "confidence": 60, "explanation": "general expense"}`,
		`{"account_code": "6150", "confidence": 90, "explanation": "telephone"}`,
	}}
	c := NewGeminiClassifierWithGenerator(gen, "")
	req := request()
	req.Session = NewSession("t1", "tx-1")

	_, err := c.Classify(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, req.Session.Turns(), 2)

	req.Feedback = "Airtime is a phone cost"
	s, err := c.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "6150", s.Mapping.DebitAccount.Code)

	require.Len(t, gen.calls, 2)
	second := gen.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, string(genai.RoleModel), second[1].Role)
	assert.True(t, strings.HasPrefix(second[2].Parts[0].Text, "Reviewer feedback"))
	assert.Len(t, req.Session.Turns(), 4)
}

func TestGemini_RejectsForeignSession(t *testing.T) {
	c := NewGeminiClassifierWithGenerator(&fakeGenerator{responses: []string{"{}"}}, "")
	req := request()
	req.Session = NewSession("t2", "tx-1")

	_, err := c.Classify(context.Background(), req)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGemini_BadJSON(t *testing.T) {
	c := NewGeminiClassifierWithGenerator(&fakeGenerator{responses: []string{"not json"}}, "")

	_, err := c.Classify(context.Background(), request())

	assert.ErrorContains(t, err, "unmarshal model answer")
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON("Sure! {\"a\":1} hope this helps"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON(`{"a":1}`))
}

type scripted struct {
	calls int
	errs  []error
}

func (s *scripted) Classify(ctx context.Context, req Request) (*Suggestion, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &Suggestion{Explanation: "ok"}, nil
}

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrying_BacksOffThenSucceeds(t *testing.T) {
	next := &scripted{errs: []error{errors.New("unavailable"), errors.New("unavailable"), errors.New("unavailable")}}
	r := NewRetrying(next, RetryPolicy{MaxAttempts: 4, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 25 * time.Millisecond})
	var delays []time.Duration
	r.sleep = noSleep(&delays)

	s, err := r.Classify(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "ok", s.Explanation)
	assert.Equal(t, 4, next.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, delays)
}

func TestRetrying_GivesUp(t *testing.T) {
	cause := errors.New("unavailable")
	next := &scripted{errs: []error{cause, cause, cause}}
	r := NewRetrying(next, RetryPolicy{MaxAttempts: 3})
	var delays []time.Duration
	r.sleep = noSleep(&delays)

	_, err := r.Classify(context.Background(), request())

	var failure *domain.EscalationFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.Attempts)
	assert.Equal(t, "tx-1", failure.TransactionID)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, delays, 2)
}

func TestRetrying_ValidationIsNotRetried(t *testing.T) {
	next := &scripted{errs: []error{domain.NewValidationError("bad session")}}
	r := NewRetrying(next, RetryPolicy{MaxAttempts: 5})

	_, err := r.Classify(context.Background(), request())

	var failure *domain.EscalationFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, next.calls)
}

type blocking struct{ calls int }

func (b *blocking) Classify(ctx context.Context, req Request) (*Suggestion, error) {
	b.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetrying_PerAttemptTimeout(t *testing.T) {
	next := &blocking{}
	r := NewRetrying(next, RetryPolicy{MaxAttempts: 2, Timeout: 5 * time.Millisecond})
	r.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := r.Classify(context.Background(), request())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, next.calls)
}

func TestDisabled(t *testing.T) {
	_, err := NewRetrying(Disabled{}, RetryPolicy{MaxAttempts: 3}).Classify(context.Background(), request())

	var failure *domain.EscalationFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempts)
}
