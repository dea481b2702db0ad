package providers

import (
	"context"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIProvider executes generation calls through the OpenAI SDK
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates an OpenAI provider from configuration
func NewOpenAIProvider(providerConfig models.ProviderConfig) *OpenAIProvider {
	clientOpts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(providerConfig.APIKey),
	}

	if providerConfig.BaseURL != "" {
		clientOpts = append(clientOpts, openaiOption.WithBaseURL(providerConfig.BaseURL))
	}

	for key, value := range providerConfig.Headers {
		clientOpts = append(clientOpts, openaiOption.WithHeader(key, value))
	}

	return &OpenAIProvider{client: openai.NewClient(clientOpts...)}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends a non-streaming chat completion request
func (p *OpenAIProvider) Generate(ctx context.Context, params GenerateParams) (string, error) {
	fiberlog.Debugf("OpenAIProvider: sending request - model: %s", params.Model)

	completionParams := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(params.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(params.System),
			openai.UserMessage(params.Prompt),
		},
	}

	startTime := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, completionParams)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("OpenAIProvider: request failed after %v: %v", duration, err)
		return "", Classify("openai", err)
	}

	if len(completion.Choices) == 0 {
		return "", models.NewProviderUpstreamError("openai", "empty completion response", nil)
	}

	fiberlog.Debugf("OpenAIProvider: request completed in %v - model: %s", duration, params.Model)
	return completion.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAIProvider)(nil)
