package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/talentforge/research-engine/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorType
	}{
		{"deadline exceeded", context.DeadlineExceeded, models.ErrorTypeProviderTimeout},
		{"http 429", errors.New("request failed with status 429"), models.ErrorTypeRateLimit},
		{"rate limit text", errors.New("Rate limit exceeded, retry later"), models.ErrorTypeRateLimit},
		{"quota text", errors.New("quota exhausted for project"), models.ErrorTypeRateLimit},
		{"timeout text", errors.New("request timed out after 30s"), models.ErrorTypeProviderTimeout},
		{"server error", errors.New("500 internal server error"), models.ErrorTypeProviderUpstream},
		{"connection reset", errors.New("connection reset by peer"), models.ErrorTypeProviderUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("openai", tt.err)
			if got.Type != tt.want {
				t.Errorf("Classify(%v).Type = %s, want %s", tt.err, got.Type, tt.want)
			}
			if !got.IsTransient() {
				t.Errorf("%s should classify as transient", tt.name)
			}
		})
	}
}

func TestClassifyPermanentRejections(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"http 401", errors.New("request failed with status 401")},
		{"http 403", errors.New("403 Forbidden")},
		{"invalid key", errors.New("Incorrect API key provided: invalid api key")},
		{"bad request", errors.New("400 bad request: missing model parameter")},
		{"permission", errors.New("permission denied for this resource")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("openai", tt.err)
			if got.Type != models.ErrorTypeProviderRejected {
				t.Errorf("Classify(%v).Type = %s, want provider_rejected", tt.err, got.Type)
			}
			if got.IsTransient() {
				t.Errorf("%s must not be retried", tt.name)
			}
			if got.IsEscalation() {
				t.Errorf("%s must not be treated as a schema failure", tt.name)
			}
		})
	}
}

func TestClassifyPassesThroughAppErrors(t *testing.T) {
	original := models.NewSchemaValidationError("task", "bad", nil)
	got := Classify("openai", original)
	if got != original {
		t.Error("existing AppError should pass through unchanged")
	}
}
