package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/middleware"
	"ledger-recon/internal/service"
	"ledger-recon/pkg/logger"
	"ledger-recon/pkg/response"
)

type ReconciliationHandler struct {
	service    service.ReconciliationService
	escalation service.EscalationService
}

func NewReconciliationHandler(service service.ReconciliationService, escalation service.EscalationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service, escalation: escalation}
}

type ClassifyRequest struct {
	Transactions []TransactionRequest `json:"transactions" binding:"required,min=1,dive"`
	SessionID    string               `json:"session_id,omitempty"`
}

type ImportStatementRequest struct {
	Location  string `json:"location" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

type EscalateRequest struct {
	Transaction TransactionRequest `json:"transaction" binding:"required"`
	Reasoning   []string           `json:"reasoning,omitempty"`
	Feedback    string             `json:"feedback,omitempty"`
	History     []escalation.Turn  `json:"history,omitempty"`
}

// Classify godoc
// @Summary Classify bank transactions
// @Description Map a batch of bank transactions onto accounts and route each by confidence. With session_id, auto-mapped entries are staged.
// @Tags classification
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body ClassifyRequest true "Transactions"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/classify [post]
func (h *ReconciliationHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	txs := make([]domain.BankTransaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		tx, err := t.toDomain(tenantID)
		if err != nil {
			response.BadRequest(c, "Invalid transaction "+t.ID, err.Error())
			return
		}
		txs = append(txs, tx)
	}

	result, err := h.service.Process(c.Request.Context(), service.ProcessRequest{
		TenantID:     tenantID,
		Transactions: txs,
		SessionID:    req.SessionID,
	})
	if err != nil {
		fail(c, "Classification failed", err)
		return
	}

	response.Success(c, http.StatusOK, "Transactions classified", result)
}

// ImportStatement godoc
// @Summary Classify a CSV bank statement
// @Description Read a statement from a server path or gs://bucket/object and classify every row
// @Tags classification
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body ImportStatementRequest true "Statement location"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/classify/import [post]
func (h *ReconciliationHandler) ImportStatement(c *gin.Context) {
	var req ImportStatementRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	logger.GetLogger().WithFields(map[string]interface{}{
		"tenant_id":  tenantID,
		"location":   req.Location,
		"session_id": req.SessionID,
	}).Info("Starting statement import")

	result, err := h.service.ImportStatement(c.Request.Context(), tenantID, req.Location, req.SessionID)
	if err != nil {
		fail(c, "Statement import failed", err)
		return
	}

	response.Success(c, http.StatusOK, "Statement classified", result)
}

// Escalate godoc
// @Summary Ask the classification model about one transaction
// @Description Returns a suggested mapping or new account. Send the returned history with feedback to refine the answer.
// @Tags classification
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body EscalateRequest true "Transaction and conversation"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/escalations [post]
func (h *ReconciliationHandler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	tx, err := req.Transaction.toDomain(tenantID)
	if err != nil {
		response.BadRequest(c, "Invalid transaction", err.Error())
		return
	}

	result, err := h.escalation.Escalate(c.Request.Context(), service.EscalateRequest{
		TenantID:    tenantID,
		Transaction: tx,
		Reasoning:   req.Reasoning,
		Feedback:    req.Feedback,
		History:     req.History,
	})
	if err != nil {
		fail(c, "Escalation failed", err)
		return
	}

	response.Success(c, http.StatusOK, "Escalation answered", result)
}
