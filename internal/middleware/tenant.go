package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ledger-recon/pkg/response"
)

const (
	// TenantHeader carries the tenant every /api/v1 request acts for.
	TenantHeader = "X-Tenant-ID"
	// TenantKey is the gin context key holding the resolved tenant.
	TenantKey = "tenant_id"
)

// Tenant rejects requests without a tenant header.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			response.BadRequest(c, "Missing tenant", TenantHeader+" header is required")
			c.Abort()
			return
		}
		c.Set(TenantKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant set by Tenant.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantKey)
}
