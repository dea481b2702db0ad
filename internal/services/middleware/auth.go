// Package middleware provides the Fiber request middleware for tenant
// resolution.
package middleware

import (
	"strings"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/auth"

	"github.com/gofiber/fiber/v2"
)

// TenantMiddleware resolves the tenant for each request from either a
// tenant API key or an upstream session JWT. Requests without a resolvable
// tenant never reach a handler.
type TenantMiddleware struct {
	keys   *auth.TenantKeyService
	jwt    *auth.JWTValidator
	config models.AuthConfig
}

// NewTenantMiddleware creates the tenant resolution middleware. keys and
// jwt are each optional, but at least one must be set when auth is enabled.
func NewTenantMiddleware(keys *auth.TenantKeyService, jwt *auth.JWTValidator, config models.AuthConfig) *TenantMiddleware {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &TenantMiddleware{keys: keys, jwt: jwt, config: config}
}

// disabledTenantID is the tenant every request resolves to when tenant
// resolution is switched off. Cache scoping still needs some tenant, so
// single-tenant deployments share this one.
const disabledTenantID = "default"

// Handler returns the Fiber handler enforcing tenant resolution
func (m *TenantMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled {
			auth.SetTenant(c, &auth.TenantContext{TenantID: disabledTenantID, Source: "disabled"})
			return c.Next()
		}
		if m.shouldSkipPath(c.Path()) {
			return c.Next()
		}

		if apiKey := c.Get(m.config.HeaderName); apiKey != "" && m.keys != nil {
			key, err := m.keys.ValidateKey(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid or expired API key",
				})
			}
			auth.SetTenant(c, &auth.TenantContext{TenantID: key.TenantID, Source: "api_key", KeyID: key.ID})
			return c.Next()
		}

		if token := bearerToken(c); token != "" && m.jwt != nil {
			tenantID, err := m.jwt.TenantFromToken(token)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid or expired token",
				})
			}
			auth.SetTenant(c, &auth.TenantContext{TenantID: tenantID, Source: "jwt"})
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func (m *TenantMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
