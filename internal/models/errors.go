package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed caller input (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing resource, e.g. a deep trigger
	// with no prior quick-phase entry (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeCacheCorruption represents stored search params that fail
	// re-validation. Fatal, never repaired or retried (500)
	ErrorTypeCacheCorruption ErrorType = "cache_corruption"
	// ErrorTypeRateLimit represents provider rate limiting (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeProviderTimeout represents a provider call timeout (504)
	ErrorTypeProviderTimeout ErrorType = "provider_timeout"
	// ErrorTypeProviderUpstream represents provider-side 5xx failures (502)
	ErrorTypeProviderUpstream ErrorType = "provider_upstream"
	// ErrorTypeProviderRejected represents a permanent provider-side
	// rejection of the call itself, e.g. bad credentials or a malformed
	// request. Retrying the same call cannot succeed (502)
	ErrorTypeProviderRejected ErrorType = "provider_rejected"
	// ErrorTypeSchemaValidation represents provider output that does not
	// conform to the task's output schema. Triggers tier escalation (502)
	ErrorTypeSchemaValidation ErrorType = "schema_validation"
	// ErrorTypeLadderExhausted represents every ladder tier failing (502)
	ErrorTypeLadderExhausted ErrorType = "ladder_exhausted"
	// ErrorTypeCircuitBreaker represents an open provider circuit (503)
	ErrorTypeCircuitBreaker ErrorType = "circuit_breaker"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether the error should be retried at the same
// ladder tier (backoff then re-attempt).
func (e *AppError) IsTransient() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeProviderTimeout, ErrorTypeProviderUpstream, ErrorTypeCircuitBreaker:
		return true
	}
	return false
}

// IsEscalation reports whether the error should advance the ladder to the
// next tier instead of retrying. A weaker model's non-conformant output is
// systematic, not transient.
func (e *AppError) IsEscalation() bool {
	return e.Type == ErrorTypeSchemaValidation
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeProviderUpstream, ErrorTypeProviderRejected, ErrorTypeSchemaValidation, ErrorTypeLadderExhausted:
		return http.StatusBadGateway
	case ErrorTypeCircuitBreaker:
		return http.StatusServiceUnavailable
	case ErrorTypeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError extracts an *AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewCacheCorruptionError creates a cache corruption error. Stored params
// that fail re-validation are never guessed at or repaired.
func NewCacheCorruptionError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCacheCorruption,
		Message:    message,
		Code:       "CACHE_CORRUPTION",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewRateLimitError creates a provider rate limit error
func NewRateLimitError(provider string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    fmt.Sprintf("provider %s rate limited", provider),
		Code:       "RATE_LIMIT_EXCEEDED",
		StatusCode: http.StatusTooManyRequests,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewProviderTimeoutError creates a provider timeout error
func NewProviderTimeoutError(provider string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProviderTimeout,
		Message:    fmt.Sprintf("provider %s timed out", provider),
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewProviderUpstreamError creates a provider upstream error
func NewProviderUpstreamError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProviderUpstream,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       fmt.Sprintf("PROVIDER_%s_ERROR", provider),
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewProviderRejectedError creates a permanent provider rejection error
func NewProviderRejectedError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProviderRejected,
		Message:    fmt.Sprintf("provider %s rejected the request: %s", provider, message),
		Code:       "PROVIDER_REJECTED",
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewSchemaValidationError creates a schema validation error
func NewSchemaValidationError(task, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeSchemaValidation,
		Message:    fmt.Sprintf("task %s output failed schema validation: %s", task, message),
		Code:       "SCHEMA_VALIDATION_FAILED",
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewLadderExhaustedError creates a terminal ladder exhaustion error
func NewLadderExhaustedError(task string, tiers int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLadderExhausted,
		Message:    fmt.Sprintf("task %s failed after exhausting %d ladder tiers", task, tiers),
		Code:       "LADDER_EXHAUSTED",
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewCircuitBreakerError creates a circuit breaker error
func NewCircuitBreakerError(provider string) *AppError {
	return &AppError{
		Type:       ErrorTypeCircuitBreaker,
		Message:    fmt.Sprintf("provider %s is currently unavailable (circuit breaker open)", provider),
		Code:       "CIRCUIT_BREAKER_OPEN",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
