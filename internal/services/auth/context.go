// Package auth resolves which tenant an inbound request belongs to.
// Role-level authorization happens upstream; by the time a request reaches
// this service the only open question is the tenant scope.
package auth

import (
	"github.com/gofiber/fiber/v2"
)

const tenantLocalsKey = "tenant_context"

// TenantContext is the resolved identity attached to a request
type TenantContext struct {
	TenantID string
	// Source records how the tenant was established: "api_key" or "jwt"
	Source string
	// KeyID is set when the request authenticated with a tenant key
	KeyID uint
}

// SetTenant attaches the resolved tenant to the request
func SetTenant(c *fiber.Ctx, tc *TenantContext) {
	c.Locals(tenantLocalsKey, tc)
}

// GetTenant returns the resolved tenant, or nil when unauthenticated
func GetTenant(c *fiber.Ctx) *TenantContext {
	tc, ok := c.Locals(tenantLocalsKey).(*TenantContext)
	if !ok {
		return nil
	}
	return tc
}

// TenantID returns the resolved tenant ID, or "" when unauthenticated
func TenantID(c *fiber.Ctx) string {
	if tc := GetTenant(c); tc != nil {
		return tc.TenantID
	}
	return ""
}
