package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/learning"
	"ledger-recon/internal/middleware"
	"ledger-recon/internal/service"
	"ledger-recon/pkg/response"
)

type RuleHandler struct {
	service service.RuleService
}

func NewRuleHandler(service service.RuleService) *RuleHandler {
	return &RuleHandler{service: service}
}

type CreateRuleRequest struct {
	Pattern     string `json:"pattern" binding:"required"`
	PatternType string `json:"pattern_type" binding:"required,oneof=contains starts_with ends_with regex"`
	AccountID   string `json:"account_id"`
	AccountCode string `json:"account_code"`
	Priority    int    `json:"priority" binding:"gte=0"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Vendor      string `json:"vendor"`
}

type LearnRuleRequest struct {
	Transaction TransactionRequest     `json:"transaction" binding:"required"`
	AccountID   string                 `json:"account_id"`
	AccountCode string                 `json:"account_code"`
	NewAccount  *domain.NewAccountSpec `json:"new_account,omitempty"`
	Source      string                 `json:"source" binding:"omitempty,oneof=ai-assisted user-created"`
	Category    string                 `json:"category"`
	Vendor      string                 `json:"vendor"`
}

// ListRules godoc
// @Summary List active mapping rules
// @Description Rules in evaluation order, lowest priority value first
// @Tags rules
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		fail(c, "Failed to list rules", err)
		return
	}
	response.Success(c, http.StatusOK, "Rules retrieved successfully", rules)
}

// CreateRule godoc
// @Summary Create or replace a mapping rule
// @Description A rule with the same pattern and pattern type is replaced
// @Tags rules
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param rule body CreateRuleRequest true "Rule"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if !bindJSON(c, &req) {
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), domain.MappingRule{
		TenantID:    middleware.TenantID(c),
		Pattern:     req.Pattern,
		PatternType: domain.PatternType(req.PatternType),
		Account:     domain.AccountRef{ID: req.AccountID, Code: req.AccountCode},
		Priority:    req.Priority,
		Metadata: domain.RuleMetadata{
			Description: req.Description,
			Category:    req.Category,
			Vendor:      req.Vendor,
		},
	})
	if err != nil {
		fail(c, "Failed to create rule", err)
		return
	}
	response.Success(c, http.StatusCreated, "Rule saved successfully", rule)
}

// LearnRule godoc
// @Summary Learn a rule from an approved mapping
// @Description Derives a contains-rule from the transaction description. A new account is created first when requested.
// @Tags rules
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param request body LearnRuleRequest true "Approved mapping"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/rules/learn [post]
func (h *RuleHandler) LearnRule(c *gin.Context) {
	var req LearnRuleRequest
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.TenantID(c)

	tx, err := req.Transaction.toDomain(tenantID)
	if err != nil {
		response.BadRequest(c, "Invalid transaction", err.Error())
		return
	}

	result, err := h.service.Learn(c.Request.Context(), learning.Request{
		TenantID:    tenantID,
		Transaction: tx,
		Account:     domain.AccountRef{ID: req.AccountID, Code: req.AccountCode},
		NewAccount:  req.NewAccount,
		Source:      domain.RuleSource(req.Source),
		Category:    req.Category,
		Vendor:      req.Vendor,
	})
	if err != nil {
		fail(c, "Failed to learn rule", err)
		return
	}
	response.Success(c, http.StatusCreated, "Rule learned successfully", result)
}

// DeactivateRule godoc
// @Summary Deactivate a mapping rule
// @Tags rules
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param rule_id path string true "Rule ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/rules/{rule_id} [delete]
func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	ruleID := c.Param("rule_id")
	if err := h.service.DeactivateRule(c.Request.Context(), middleware.TenantID(c), ruleID); err != nil {
		fail(c, "Failed to deactivate rule", err)
		return
	}
	response.Success(c, http.StatusOK, "Rule deactivated successfully", gin.H{"rule_id": ruleID})
}
