package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

// GeminiProvider executes generation calls through the Gemini SDK
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider from configuration
func NewGeminiProvider(ctx context.Context, providerConfig models.ProviderConfig) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  providerConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate sends a non-streaming generate content request
func (p *GeminiProvider) Generate(ctx context.Context, params GenerateParams) (string, error) {
	fiberlog.Debugf("GeminiProvider: sending request - model: %s", params.Model)

	generateConfig := &genai.GenerateContentConfig{}
	if params.System != "" {
		generateConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: params.System}},
		}
	}

	startTime := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, params.Model, genai.Text(params.Prompt), generateConfig)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("GeminiProvider: request failed after %v: %v", duration, err)
		return "", Classify("gemini", err)
	}

	text := resp.Text()
	if text == "" {
		return "", models.NewProviderUpstreamError("gemini", "empty generate response", nil)
	}

	fiberlog.Debugf("GeminiProvider: request completed in %v - model: %s", duration, params.Model)
	return text, nil
}

var _ Provider = (*GeminiProvider)(nil)
