package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/models"
	contracts2 "github.com/meysamhadeli/docai/token_management/contracts"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// OpenAIConfig holds the settings of an OpenAI compatible chat completion API.
type OpenAIConfig struct {
	// Name is reported as the provider name; it defaults to "openai".
	Name            string
	BaseURL         string
	Model           string
	ApiKey          string
	Temperature     *float32
	MaxTokens       int
	Timeout         time.Duration
	TokenManagement contracts2.ITokenManagement
}

// OpenAIProvider implements the IDocProvider interface on top of openai-go.
type OpenAIProvider struct {
	config OpenAIConfig
	client openai.Client
}

// NewOpenAIDocProvider initializes a new OpenAI provider. Retries are owned by
// the gateway, so the SDK's own retry loop is disabled.
func NewOpenAIDocProvider(config *OpenAIConfig) contracts.IDocProvider {
	cfg := *config
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.ApiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		config: cfg,
		client: openai.NewClient(opts...),
	}
}

func (p *OpenAIProvider) Name() string {
	return p.config.Name
}

func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// IsAvailable reports whether an API key is configured.
func (p *OpenAIProvider) IsAvailable() bool {
	return strings.TrimSpace(p.config.ApiKey) != ""
}

func (p *OpenAIProvider) EstimateCost(request models.GenerationRequest) float64 {
	if p.config.TokenManagement == nil || !p.config.TokenManagement.IsPriced(p.config.Name, p.config.Model) {
		return 0
	}
	input := p.config.TokenManagement.EstimateTokens(request.SystemPrompt + request.Prompt)
	output := request.MaxTokens
	if output <= 0 {
		output = p.config.MaxTokens
	}
	return p.config.TokenManagement.CalculateCost(p.config.Name, p.config.Model, input, output)
}

func (p *OpenAIProvider) Generate(ctx context.Context, request models.GenerationRequest) (models.GenerationResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(request.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.config.Model),
		Messages: messages,
	}
	if p.config.Temperature != nil {
		params.Temperature = openai.Float(float64(*p.config.Temperature))
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return models.GenerationResponse{}, &models.StatusError{
				Provider: p.config.Name,
				Code:     apiErr.StatusCode,
				Message:  apiErr.Message,
			}
		}
		return models.GenerationResponse{}, fmt.Errorf("%s API call failed: %w", p.config.Name, err)
	}

	if len(completion.Choices) == 0 {
		return models.GenerationResponse{}, fmt.Errorf("no completion choices returned")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return models.GenerationResponse{}, fmt.Errorf("%s returned an empty completion", p.config.Name)
	}

	result := models.GenerationResponse{
		Text:         text,
		Model:        p.config.Model,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		TokensUsed:   int(completion.Usage.TotalTokens),
	}
	if completion.Model != "" {
		result.Model = string(completion.Model)
	}

	if p.config.TokenManagement != nil && result.TokensUsed > 0 {
		p.config.TokenManagement.UsedTokens(result.InputTokens, result.OutputTokens)
		result.Cost = p.config.TokenManagement.CalculateCost(p.config.Name, p.config.Model, result.InputTokens, result.OutputTokens)
	}

	return result, nil
}
