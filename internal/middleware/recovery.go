package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-recon/pkg/logger"
	"ledger-recon/pkg/response"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(map[string]interface{}{
					"error":  err,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				}).Error("Panic recovered")
				response.InternalError(c, "Internal server error", "An unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler answers for handlers that recorded an error with c.Error but
// wrote no response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last()
		logger.GetLogger().WithError(err.Err).Error("Request error")
		FromError(c, "Request failed", err.Err)
	}
}

// HealthStatus is reported by GET /health.
func HealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
