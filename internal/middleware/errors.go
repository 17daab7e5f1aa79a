package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-recon/internal/chart"
	"ledger-recon/internal/domain"
	"ledger-recon/pkg/response"
)

// FromError writes the envelope for a service error. message prefixes the
// 500 response; typed errors carry their own text.
func FromError(c *gin.Context, message string, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		exists     *domain.AlreadyExistsError
		imbalance  *domain.PostingImbalanceError
		mismatch   *domain.StagingPromotionMismatchError
		escalation *domain.EscalationFailureError
		cycle      *chart.CycleError
	)

	switch {
	case errors.As(err, &notFound):
		response.NotFound(c, notFound.Error())
	case errors.As(err, &validation):
		response.BadRequest(c, message, validation.Error())
	case errors.As(err, &exists):
		response.Conflict(c, message, exists.Error())
	case errors.Is(err, domain.ErrDuplicatePosting):
		response.Error(c, http.StatusConflict, "DUPLICATE_POSTING", message, err.Error())
	case errors.Is(err, domain.ErrAlreadyVoided):
		response.Error(c, http.StatusConflict, "ALREADY_VOIDED", message, err.Error())
	case errors.Is(err, domain.ErrSessionPromoted):
		response.Error(c, http.StatusConflict, "SESSION_PROMOTED", message, err.Error())
	case errors.As(err, &imbalance):
		response.Unprocessable(c, "POSTING_IMBALANCE", message, imbalance.Error())
	case errors.As(err, &mismatch):
		response.Unprocessable(c, "PROMOTION_MISMATCH", message, mismatch.Error())
	case errors.As(err, &cycle):
		response.Unprocessable(c, "ACCOUNT_CYCLE", message, cycle.Error())
	case errors.Is(err, domain.ErrNoBankAccount):
		response.Unprocessable(c, "NO_BANK_ACCOUNT", message, err.Error())
	case errors.As(err, &escalation):
		response.Error(c, http.StatusBadGateway, "ESCALATION_FAILED", message, escalation.Error())
	default:
		response.InternalError(c, message, err.Error())
	}
}
