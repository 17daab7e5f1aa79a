package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledger-recon/internal/domain"
	"ledger-recon/internal/middleware"
	"ledger-recon/pkg/logger"
	"ledger-recon/pkg/response"
)

// TransactionRequest is a bank transaction as sent over HTTP. Exactly one of
// debit_amount and credit_amount must be set.
type TransactionRequest struct {
	ID           string           `json:"id" binding:"required"`
	Date         string           `json:"date" binding:"required"`
	Description  string           `json:"description" binding:"required"`
	DebitAmount  *decimal.Decimal `json:"debit_amount,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
	Category     string           `json:"category,omitempty"`
	Reference    string           `json:"reference,omitempty"`
}

func (r TransactionRequest) toDomain(tenantID string) (domain.BankTransaction, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.BankTransaction{}, err
	}
	return domain.BankTransaction{
		ID:           r.ID,
		TenantID:     tenantID,
		Date:         date,
		Description:  r.Description,
		DebitAmount:  r.DebitAmount,
		CreditAmount: r.CreditAmount,
		Category:     r.Category,
		Reference:    r.Reference,
	}, nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid date %q, use YYYY-MM-DD or RFC3339", s))
	}
	return t, nil
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err.Error())
		return false
	}
	return true
}

func fail(c *gin.Context, message string, err error) {
	logger.GetLogger().WithError(err).WithField("tenant_id", middleware.TenantID(c)).Error(message)
	middleware.FromError(c, message, err)
}
