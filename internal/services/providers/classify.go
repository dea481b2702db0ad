package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/talentforge/research-engine/internal/models"
)

// Classify maps a raw provider SDK error onto the application taxonomy so
// the invoker can decide between same-tier retry and tier escalation.
func Classify(provider string, err error) *models.AppError {
	if appErr, ok := models.AsAppError(err); ok {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewProviderTimeoutError(provider, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return models.NewRateLimitError(provider, err)
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return models.NewProviderTimeoutError(provider, err)
	case isRejection(msg):
		// A call the provider refuses outright will be refused again no
		// matter how often it is retried.
		return models.NewProviderRejectedError(provider, "call rejected", err)
	default:
		// 5xx, overloaded, connection resets and anything else from the
		// provider side is treated as a transient upstream fault.
		return models.NewProviderUpstreamError(provider, "generate request failed", err)
	}
}

// isRejection matches auth failures and request errors the provider will
// never accept on retry.
func isRejection(msg string) bool {
	for _, marker := range []string{
		"401", "403", "unauthorized", "forbidden", "invalid api key",
		"authentication", "permission denied", "400", "bad request", "invalid request",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
