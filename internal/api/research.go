// Package api holds the HTTP handlers for the research endpoints.
package api

import (
	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/auth"
	"github.com/talentforge/research-engine/internal/services/research"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ResearchHandler serves the quick, deep, poll and listings endpoints
type ResearchHandler struct {
	quick *research.QuickService
	deep  *research.DeepService
	poll  *research.PollService
}

// NewResearchHandler wires up the research endpoints
func NewResearchHandler(quick *research.QuickService, deep *research.DeepService, poll *research.PollService) *ResearchHandler {
	return &ResearchHandler{quick: quick, deep: deep, poll: poll}
}

// Quick handles POST /v1/research/quick
func (h *ResearchHandler) Quick(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	var req models.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}

	fiberlog.Infof("[%s] ResearchHandler: quick request for role %q", tenantID, req.Role)
	resp, err := h.quick.RunQuick(c.Context(), tenantID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// Listings handles POST /v1/research/listings
func (h *ResearchHandler) Listings(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	var req models.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}

	fiberlog.Infof("[%s] ResearchHandler: listings request for role %q", tenantID, req.Role)
	resp, err := h.quick.RunListings(c.Context(), tenantID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// TriggerDeep handles POST /v1/research/deep. It acknowledges with 202
// before the continuation has done any work.
func (h *ResearchHandler) TriggerDeep(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	var trigger models.DeepTriggerRequest
	if err := c.BodyParser(&trigger); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}

	resp, err := h.deep.Trigger(tenantID, trigger)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// PollDeep handles GET /v1/research/deep/:cache_key
func (h *ResearchHandler) PollDeep(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	resp, err := h.poll.Poll(c.Context(), tenantID, c.Params("cache_key"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "authentication required",
	})
}

// respondError maps an error to its HTTP status, sanitizing anything that
// is not already a classified application error.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
		"error": appErr.Message,
		"type":  appErr.Type,
	})
}
