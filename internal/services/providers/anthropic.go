package providers

import (
	"context"
	"strings"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const defaultAnthropicMaxTokens = 8192

// AnthropicProvider executes generation calls through the Anthropic SDK
type AnthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider creates an Anthropic provider from configuration
func NewAnthropicProvider(providerConfig models.ProviderConfig) *AnthropicProvider {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(providerConfig.APIKey),
	}

	if providerConfig.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(providerConfig.BaseURL))
	}

	for key, value := range providerConfig.Headers {
		clientOpts = append(clientOpts, option.WithHeader(key, value))
	}

	client := anthropic.NewClient(clientOpts...)
	return &AnthropicProvider{client: &client}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate sends a non-streaming message request
func (p *AnthropicProvider) Generate(ctx context.Context, params GenerateParams) (string, error) {
	fiberlog.Debugf("AnthropicProvider: sending request - model: %s", params.Model)

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	messageParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: params.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(params.Prompt)),
		},
	}

	startTime := time.Now()
	message, err := p.client.Messages.New(ctx, messageParams)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("AnthropicProvider: request failed after %v: %v", duration, err)
		return "", Classify("anthropic", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", models.NewProviderUpstreamError("anthropic", "empty message response", nil)
	}

	fiberlog.Debugf("AnthropicProvider: request completed in %v - usage: input:%d, output:%d",
		duration, message.Usage.InputTokens, message.Usage.OutputTokens)
	return sb.String(), nil
}

var _ Provider = (*AnthropicProvider)(nil)
