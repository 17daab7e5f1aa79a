package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/matcher"
	"ledger-recon/internal/repository/memory"
	"ledger-recon/internal/resolver"
	"ledger-recon/internal/service"
	"ledger-recon/pkg/response"
)

const tenant = "tenant-1"

type envelope struct {
	response.Response
	Data json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := memory.New()
	for _, a := range []domain.Account{
		{ID: "a-1000", Code: "1000", Name: "Bank", Type: domain.Asset},
		{ID: "a-2000", Code: "2000", Name: "Accounts Payable", Type: domain.Liability},
		{ID: "a-6100", Code: "6100", Name: "Electricity", Type: domain.Expense},
	} {
		a.TenantID = tenant
		a.IsActive = true
		require.NoError(t, m.SaveAccount(&a))
	}

	posting := service.NewPostingService(m, m, nil)
	recon := service.NewReconciliationService(m, m, m, posting, nil, nil, service.ReconciliationOptions{
		Matching: matcher.DefaultConfig(),
		Resolver: resolver.DefaultConfig(),
	})
	escalations := service.NewEscalationService(escalation.Disabled{}, m, m, matcher.DefaultConfig(), resolver.DefaultConfig())

	return NewRouter(
		NewReconciliationHandler(recon, escalations),
		NewRuleHandler(service.NewRuleService(m, m, 0)),
		NewJournalHandler(posting),
	), m
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func eskomPayment(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"date":         "2024-03-05",
		"description":  "ESKOM PREPAID 123",
		"debit_amount": "100.00",
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestTenantHeaderRequired(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRulesAndClassify(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"pattern": "ESKOM", "pattern_type": "contains", "account_code": "6100",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var rule domain.MappingRule
	require.NoError(t, json.Unmarshal(env.Data, &rule))
	assert.Equal(t, "eskom", rule.Pattern)
	assert.Equal(t, "a-6100", rule.Account.ID)

	code, env = do(t, router, http.MethodPost, "/api/v1/classify", map[string]interface{}{
		"transactions": []interface{}{eskomPayment("t1")},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var result service.ProcessResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, domain.DecisionAutoMapped, result.Results[0].Decision)
	assert.Equal(t, 1, result.Stats.AutoMapped)

	code, _ = do(t, router, http.MethodDelete, "/api/v1/rules/"+rule.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, router, http.MethodDelete, "/api/v1/rules/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRuleValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"pattern": "eskom", "pattern_type": "glob", "account_code": "6100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = do(t, router, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"pattern": "eskom", "pattern_type": "contains", "account_code": "9999",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestClassifyRejectsBadDate(t *testing.T) {
	router, _ := newTestRouter(t)
	tx := eskomPayment("t1")
	tx["date"] = "05-03-2024"

	code, _ := do(t, router, http.MethodPost, "/api/v1/classify", map[string]interface{}{
		"transactions": []interface{}{tx},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestJournalLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	mapping := map[string]interface{}{
		"transaction":    eskomPayment("t1"),
		"debit_account":  map[string]string{"code": "6100"},
		"credit_account": map[string]string{"code": "1000"},
		"confidence":     100,
	}

	code, env := do(t, router, http.MethodPost, "/api/v1/journals", mapping)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var entry domain.JournalEntry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, domain.JournalPosted, entry.Status)

	code, env = do(t, router, http.MethodPost, "/api/v1/journals", mapping)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DUPLICATE_POSTING", env.Error.Code)

	code, _ = do(t, router, http.MethodGet, "/api/v1/journals/"+entry.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, router, http.MethodGet, "/api/v1/journals/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, router, http.MethodGet, "/api/v1/journals?source=bank-transaction&source_id=t1", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var found domain.JournalEntry
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.Equal(t, entry.ID, found.ID)
	code, _ = do(t, router, http.MethodGet, "/api/v1/journals?source=bank-transaction", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, router, http.MethodGet, "/api/v1/journals?source=bank-transaction&source_id=t9", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, router, http.MethodPost, "/api/v1/journals/"+entry.ID+"/void", map[string]string{"reason": "wrong account"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var reversal domain.JournalEntry
	require.NoError(t, json.Unmarshal(env.Data, &reversal))
	assert.Equal(t, entry.ID, reversal.ReversalOf)

	code, env = do(t, router, http.MethodPost, "/api/v1/journals/"+entry.ID+"/void", map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_VOIDED", env.Error.Code)
}

func TestBillAndPayment(t *testing.T) {
	router, m := newTestRouter(t)
	require.NoError(t, m.SaveEntity(t.Context(), &domain.Entity{ID: "s1", TenantID: tenant, Kind: domain.Creditor, Name: "Eskom", IsActive: true}))

	code, env := do(t, router, http.MethodPost, "/api/v1/journals/bills", map[string]interface{}{
		"id": "bill-1", "entity_id": "s1", "number": "B-1", "date": "2024-03-01",
		"lines":                []map[string]string{{"account_code": "6100", "description": "March", "amount": "250"}},
		"payable_account_code": "2000",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = do(t, router, http.MethodPost, "/api/v1/journals/payments", map[string]interface{}{
		"id": "pay-1", "entity_id": "s1", "kind": "creditor", "date": "2024-03-10", "amount": "100",
		"bank_account_code": "1000", "control_account_code": "2000",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	supplier, err := m.GetEntity(t.Context(), tenant, "s1")
	require.NoError(t, err)
	assert.Equal(t, "150", supplier.CurrentBalance.String())
}

func TestSessionStageAndPromote(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var session domain.ImportSession
	require.NoError(t, json.Unmarshal(env.Data, &session))

	code, env = do(t, router, http.MethodPost, "/api/v1/sessions/"+session.ID+"/entries", map[string]interface{}{
		"transaction":    eskomPayment("t1"),
		"debit_account":  map[string]string{"code": "6100"},
		"credit_account": map[string]string{"code": "1000"},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = do(t, router, http.MethodPost, "/api/v1/sessions/"+session.ID+"/promote", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var promoted domain.PromotionResult
	require.NoError(t, json.Unmarshal(env.Data, &promoted))
	assert.Equal(t, 1, promoted.Entries)
	assert.Equal(t, 2, promoted.Lines)

	code, env = do(t, router, http.MethodGet, "/api/v1/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, domain.SessionPromoted, session.Status)

	code, _ = do(t, router, http.MethodGet, "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEscalateWithoutCollaborator(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/escalations", map[string]interface{}{
		"transaction": eskomPayment("t1"),
	})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "ESCALATION_FAILED", env.Error.Code)
}
