package models

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold,omitempty" json:"failure_threshold,omitzero"` // Number of failures before opening circuit
	SuccessThreshold int  `yaml:"success_threshold,omitempty" json:"success_threshold,omitzero"` // Number of successes to close circuit
	ResetAfterMs     int  `yaml:"reset_after_ms,omitempty" json:"reset_after_ms,omitzero"`       // Time to wait before trying to close circuit
}
