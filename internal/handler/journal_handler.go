package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/journal"
	"ledger-recon/internal/middleware"
	"ledger-recon/internal/service"
	"ledger-recon/pkg/response"
)

type JournalHandler struct {
	service service.PostingService
}

func NewJournalHandler(service service.PostingService) *JournalHandler {
	return &JournalHandler{service: service}
}

// PostMappingRequest is an approved mapping. EntityID is set when the
// payment settles a counterparty document.
type PostMappingRequest struct {
	Transaction   TransactionRequest `json:"transaction" binding:"required"`
	DebitAccount  domain.AccountRef  `json:"debit_account"`
	CreditAccount domain.AccountRef  `json:"credit_account"`
	Confidence    int                `json:"confidence" binding:"gte=0,lte=100"`
	Source        string             `json:"source"`
	RuleID        string             `json:"rule_id,omitempty"`
	EntityID      string             `json:"entity_id,omitempty"`
}

func (r PostMappingRequest) toDomain(tenantID string) (domain.TransactionMapping, error) {
	tx, err := r.Transaction.toDomain(tenantID)
	if err != nil {
		return domain.TransactionMapping{}, err
	}
	source := domain.MappingSource(r.Source)
	if source == "" {
		source = domain.SourceManual
	}
	return domain.TransactionMapping{
		Transaction:   tx,
		DebitAccount:  r.DebitAccount,
		CreditAccount: r.CreditAccount,
		Confidence:    r.Confidence,
		Source:        source,
		RuleID:        r.RuleID,
	}, nil
}

type BillRequest struct {
	ID                 string             `json:"id" binding:"required"`
	EntityID           string             `json:"entity_id" binding:"required"`
	Number             string             `json:"number"`
	Date               string             `json:"date" binding:"required"`
	Description        string             `json:"description"`
	Lines              []journal.BillLine `json:"lines" binding:"required,min=1"`
	TaxAmount          decimal.Decimal    `json:"tax_amount"`
	TaxAccountCode     string             `json:"tax_account_code,omitempty"`
	PayableAccountCode string             `json:"payable_account_code" binding:"required"`
}

type PaymentRequest struct {
	ID                 string          `json:"id" binding:"required"`
	EntityID           string          `json:"entity_id" binding:"required"`
	Kind               string          `json:"kind" binding:"required,oneof=debtor creditor"`
	DocumentID         string          `json:"document_id,omitempty"`
	Date               string          `json:"date" binding:"required"`
	Amount             decimal.Decimal `json:"amount"`
	Reference          string          `json:"reference,omitempty"`
	BankAccountCode    string          `json:"bank_account_code" binding:"required"`
	ControlAccountCode string          `json:"control_account_code" binding:"required"`
}

type VoidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PostMapping godoc
// @Summary Post an approved transaction mapping
// @Description Builds a balanced two-line entry and posts it. A source transaction can be posted once.
// @Tags journals
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body PostMappingRequest true "Mapping"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/journals [post]
func (h *JournalHandler) PostMapping(c *gin.Context) {
	var req PostMappingRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	mapping, err := req.toDomain(tenantID)
	if err != nil {
		response.BadRequest(c, "Invalid transaction", err.Error())
		return
	}

	entry, err := h.service.PostMapping(c.Request.Context(), tenantID, mapping, req.EntityID)
	if err != nil {
		fail(c, "Failed to post journal entry", err)
		return
	}
	response.Success(c, http.StatusCreated, "Journal entry posted", entry)
}

// PostBill godoc
// @Summary Record a supplier bill
// @Tags journals
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body BillRequest true "Bill"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/journals/bills [post]
func (h *JournalHandler) PostBill(c *gin.Context) {
	var req BillRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid bill date", err.Error())
		return
	}

	entry, err := h.service.PostBill(c.Request.Context(), middleware.TenantID(c), journal.Bill{
		ID:                 req.ID,
		EntityID:           req.EntityID,
		Number:             req.Number,
		Date:               date,
		Description:        req.Description,
		Lines:              req.Lines,
		TaxAmount:          req.TaxAmount,
		TaxAccountCode:     req.TaxAccountCode,
		PayableAccountCode: req.PayableAccountCode,
	})
	if err != nil {
		fail(c, "Failed to post bill", err)
		return
	}
	response.Success(c, http.StatusCreated, "Bill posted", entry)
}

// PostPayment godoc
// @Summary Record a supplier payment or customer receipt
// @Tags journals
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body PaymentRequest true "Payment"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/journals/payments [post]
func (h *JournalHandler) PostPayment(c *gin.Context) {
	var req PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid payment date", err.Error())
		return
	}

	entry, err := h.service.PostPayment(c.Request.Context(), middleware.TenantID(c), journal.Payment{
		ID:                 req.ID,
		EntityID:           req.EntityID,
		Kind:               domain.EntityKind(req.Kind),
		DocumentID:         req.DocumentID,
		Date:               date,
		Amount:             req.Amount,
		Reference:          req.Reference,
		BankAccountCode:    req.BankAccountCode,
		ControlAccountCode: req.ControlAccountCode,
	})
	if err != nil {
		fail(c, "Failed to post payment", err)
		return
	}
	response.Success(c, http.StatusCreated, "Payment posted", entry)
}

// GetEntry godoc
// @Summary Get a journal entry
// @Tags journals
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param entry_id path string true "Entry ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/journals/{entry_id} [get]
func (h *JournalHandler) GetEntry(c *gin.Context) {
	entry, err := h.service.GetEntry(c.Request.Context(), middleware.TenantID(c), c.Param("entry_id"))
	if err != nil {
		fail(c, "Failed to get journal entry", err)
		return
	}
	response.Success(c, http.StatusOK, "Journal entry retrieved successfully", entry)
}

// FindEntry godoc
// @Summary Find the journal entry posted for a source document
// @Tags journals
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param source query string true "Source (bank-transaction, bill, payment, void)"
// @Param source_id query string true "Source document ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/journals [get]
func (h *JournalHandler) FindEntry(c *gin.Context) {
	source := domain.JournalSource(c.Query("source"))
	entry, err := h.service.FindEntryBySource(c.Request.Context(), middleware.TenantID(c), source, c.Query("source_id"))
	if err != nil {
		fail(c, "Failed to find journal entry", err)
		return
	}
	response.Success(c, http.StatusOK, "Journal entry retrieved successfully", entry)
}

// VoidEntry godoc
// @Summary Void a posted journal entry
// @Description Marks the entry void and posts its reversal in one transaction
// @Tags journals
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param entry_id path string true "Entry ID"
// @Param request body VoidRequest true "Reason"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/journals/{entry_id}/void [post]
func (h *JournalHandler) VoidEntry(c *gin.Context) {
	var req VoidRequest
	if !bindJSON(c, &req) {
		return
	}

	reversal, err := h.service.Void(c.Request.Context(), middleware.TenantID(c), c.Param("entry_id"), req.Reason)
	if err != nil {
		fail(c, "Failed to void journal entry", err)
		return
	}
	response.Success(c, http.StatusOK, "Journal entry voided", reversal)
}

// CreateSession godoc
// @Summary Open an import session for staged postings
// @Tags sessions
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Success 201 {object} response.Response
// @Router /api/v1/sessions [post]
func (h *JournalHandler) CreateSession(c *gin.Context) {
	session, err := h.service.CreateSession(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		fail(c, "Failed to create import session", err)
		return
	}
	response.Success(c, http.StatusCreated, "Import session created", session)
}

// GetSession godoc
// @Summary Get an import session with staged and promoted counts
// @Tags sessions
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param session_id path string true "Session ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/sessions/{session_id} [get]
func (h *JournalHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), middleware.TenantID(c), c.Param("session_id"))
	if err != nil {
		fail(c, "Failed to get import session", err)
		return
	}
	response.Success(c, http.StatusOK, "Import session retrieved successfully", session)
}

// StageEntry godoc
// @Summary Stage an approved mapping into an import session
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param session_id path string true "Session ID"
// @Param request body PostMappingRequest true "Mapping"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/sessions/{session_id}/entries [post]
func (h *JournalHandler) StageEntry(c *gin.Context) {
	var req PostMappingRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	mapping, err := req.toDomain(tenantID)
	if err != nil {
		response.BadRequest(c, "Invalid transaction", err.Error())
		return
	}

	entry, err := h.service.Stage(c.Request.Context(), tenantID, c.Param("session_id"), mapping, req.EntityID)
	if err != nil {
		fail(c, "Failed to stage journal entry", err)
		return
	}
	response.Success(c, http.StatusCreated, "Journal entry staged", entry)
}

// PromoteSession godoc
// @Summary Promote every staged entry of a session
// @Description All or nothing. Promoting an already promoted session returns the recorded result.
// @Tags sessions
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param session_id path string true "Session ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/sessions/{session_id}/promote [post]
func (h *JournalHandler) PromoteSession(c *gin.Context) {
	result, err := h.service.Promote(c.Request.Context(), middleware.TenantID(c), c.Param("session_id"))
	if err != nil {
		fail(c, "Failed to promote import session", err)
		return
	}
	response.Success(c, http.StatusOK, "Import session promoted", result)
}
