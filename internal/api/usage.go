package api

import (
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/auth"
	"github.com/talentforge/research-engine/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// UsageHandler exposes invocation analytics for the calling tenant
type UsageHandler struct {
	usage *usage.Service
}

// NewUsageHandler creates the usage analytics handler
func NewUsageHandler(svc *usage.Service) *UsageHandler {
	return &UsageHandler{usage: svc}
}

// Stats handles GET /v1/usage/stats. Optional start_date and end_date query
// params (RFC 3339) bound the window; the default is the last 30 days.
func (h *UsageHandler) Stats(c *fiber.Ctx) error {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		return unauthenticated(c)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondError(c, models.NewValidationError("invalid start_date, expected RFC 3339", err))
		}
		start = parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondError(c, models.NewValidationError("invalid end_date, expected RFC 3339", err))
		}
		end = parsed
	}
	if end.Before(start) {
		return respondError(c, models.NewValidationError("end_date is before start_date", nil))
	}

	stats, err := h.usage.GetTenantStats(c.Context(), tenantID, start, end)
	if err != nil {
		return respondError(c, models.NewInternalError("failed to load usage stats", err))
	}

	return c.JSON(fiber.Map{
		"start_date": start,
		"end_date":   end,
		"stats":      stats,
	})
}
