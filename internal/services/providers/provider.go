// Package providers adapts the external model SDKs behind a single
// generation interface consumed by the invoker.
package providers

import (
	"context"
	"fmt"

	"github.com/talentforge/research-engine/internal/config"
)

// GenerateParams is one model call: a system prompt, a user prompt and the
// model to run them on.
type GenerateParams struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Provider executes a single generation call against an external model API.
// Implementations return the raw text output; schema validation happens in
// the invoker. Errors must be classified via Classify before crossing the
// package boundary.
type Provider interface {
	Name() string
	Generate(ctx context.Context, params GenerateParams) (string, error)
}

// Registry holds the configured providers by name
type Registry map[string]Provider

// NewRegistry builds providers from configuration. Every provider named by
// an escalation ladder must be present here.
func NewRegistry(ctx context.Context, cfg *config.Config) (Registry, error) {
	registry := make(Registry, len(cfg.Providers))

	for name, providerCfg := range cfg.Providers {
		switch name {
		case "openai":
			registry[name] = NewOpenAIProvider(providerCfg)
		case "anthropic":
			registry[name] = NewAnthropicProvider(providerCfg)
		case "gemini":
			provider, err := NewGeminiProvider(ctx, providerCfg)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
			}
			registry[name] = provider
		default:
			return nil, fmt.Errorf("unsupported provider: %s (supported: openai, anthropic, gemini)", name)
		}
	}

	return registry, nil
}

// Get returns the named provider
func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[name]
	return p, ok
}
