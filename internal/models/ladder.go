package models

import "time"

// ModelTier is one rung of an escalation ladder: a provider/model pair with
// its transient-retry budget and backoff schedule. Ladder order encodes
// increasing cost and capability.
type ModelTier struct {
	Provider    string `yaml:"provider" json:"provider"`
	Model       string `yaml:"model" json:"model"`
	MaxAttempts int    `yaml:"max_attempts" json:"max_attempts"`
	BackoffMs   int    `yaml:"backoff_ms,omitempty" json:"backoff_ms,omitzero"`
	TimeoutMs   int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitzero"`
}

// Backoff returns the base backoff delay for the tier
func (t ModelTier) Backoff() time.Duration {
	if t.BackoffMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(t.BackoffMs) * time.Millisecond
}

// Timeout returns the per-call timeout for the tier
func (t ModelTier) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Attempts returns the tier's attempt budget for transient failures
func (t ModelTier) Attempts() int {
	if t.MaxAttempts <= 0 {
		return 1
	}
	return t.MaxAttempts
}

// EscalationLadder is an ordered list of model tiers. Transient failures
// retry within a tier; capability failures move forward through the ladder,
// never backward.
type EscalationLadder struct {
	Tiers []ModelTier `yaml:"tiers" json:"tiers"`
}

// IsEmpty reports whether the ladder has no tiers configured
func (l EscalationLadder) IsEmpty() bool {
	return len(l.Tiers) == 0
}

// LaddersConfig holds the per-phase escalation ladders
type LaddersConfig struct {
	Quick    EscalationLadder `yaml:"quick"`
	Deep     EscalationLadder `yaml:"deep"`
	Listings EscalationLadder `yaml:"listings"`
}

// DefaultLadders returns the ladders used when none are configured: a cheap
// fast tier first, escalating to progressively more capable models.
func DefaultLadders() LaddersConfig {
	return LaddersConfig{
		Quick: EscalationLadder{Tiers: []ModelTier{
			{Provider: "openai", Model: "gpt-4o-mini", MaxAttempts: 3, BackoffMs: 500, TimeoutMs: 30000},
			{Provider: "openai", Model: "gpt-4o", MaxAttempts: 2, BackoffMs: 1000, TimeoutMs: 45000},
		}},
		Deep: EscalationLadder{Tiers: []ModelTier{
			{Provider: "anthropic", Model: "claude-sonnet-4-20250514", MaxAttempts: 3, BackoffMs: 1000, TimeoutMs: 180000},
			{Provider: "openai", Model: "gpt-4o", MaxAttempts: 2, BackoffMs: 2000, TimeoutMs: 240000},
		}},
		Listings: EscalationLadder{Tiers: []ModelTier{
			{Provider: "gemini", Model: "gemini-2.0-flash", MaxAttempts: 3, BackoffMs: 500, TimeoutMs: 30000},
			{Provider: "openai", Model: "gpt-4o-mini", MaxAttempts: 2, BackoffMs: 1000, TimeoutMs: 45000},
		}},
	}
}
