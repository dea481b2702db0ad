package api

import (
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/auth"

	"github.com/gofiber/fiber/v2"
)

// KeyHandler manages tenant API keys. All operations act within the
// tenant resolved for the calling request.
type KeyHandler struct {
	keys *auth.TenantKeyService
}

// NewKeyHandler creates the tenant key handler
func NewKeyHandler(keys *auth.TenantKeyService) *KeyHandler {
	return &KeyHandler{keys: keys}
}

type createKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Create handles POST /v1/keys. The plaintext key appears only in this
// response.
func (h *KeyHandler) Create(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	var req createKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}
	if req.Name == "" {
		return respondError(c, models.NewValidationError("name is required", nil))
	}

	plaintext, key, err := h.keys.CreateKey(c.Context(), tenantID, req.Name, req.ExpiresAt)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":        plaintext,
		"key_prefix": key.KeyPrefix,
		"id":         key.ID,
		"name":       key.Name,
	})
}

// List handles GET /v1/keys
func (h *KeyHandler) List(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	keys, err := h.keys.ListKeys(c.Context(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"keys": keys})
}

// Revoke handles DELETE /v1/keys/:id
func (h *KeyHandler) Revoke(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	keyID, err := c.ParamsInt("id")
	if err != nil || keyID <= 0 {
		return respondError(c, models.NewValidationError("invalid key id", err))
	}

	if err := h.keys.RevokeKey(c.Context(), tenantID, uint(keyID)); err != nil {
		if err == auth.ErrInvalidKey {
			return respondError(c, models.NewNotFoundError("key not found"))
		}
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
