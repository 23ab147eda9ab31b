package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/models"
	ollama_models "github.com/meysamhadeli/docai/providers/ollama/models"
	contracts2 "github.com/meysamhadeli/docai/token_management/contracts"
)

// OllamaConfig holds the settings of a local Ollama server.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Temperature     *float32
	MaxTokens       int
	Timeout         time.Duration
	TokenManagement contracts2.ITokenManagement
	HTTPClient      *http.Client
}

// OllamaProvider implements the IDocProvider interface for Ollama.
type OllamaProvider struct {
	config OllamaConfig
	client *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434/api"
	defaultTimeout = 120 * time.Second
	providerName   = "ollama"
)

// NewOllamaDocProvider initializes a new Ollama provider.
func NewOllamaDocProvider(config *OllamaConfig) contracts.IDocProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &OllamaProvider{
		config: OllamaConfig{
			BaseURL:         strings.TrimRight(baseURL, "/"),
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			Timeout:         timeout,
			TokenManagement: config.TokenManagement,
		},
		client: client,
	}
}

func (ollamaProvider *OllamaProvider) Name() string {
	return providerName
}

func (ollamaProvider *OllamaProvider) Model() string {
	return ollamaProvider.config.Model
}

// IsAvailable reports whether a server and model are configured. Ollama needs no credentials.
func (ollamaProvider *OllamaProvider) IsAvailable() bool {
	return ollamaProvider.config.BaseURL != "" && ollamaProvider.config.Model != ""
}

func (ollamaProvider *OllamaProvider) EstimateCost(request models.GenerationRequest) float64 {
	if ollamaProvider.config.TokenManagement == nil || !ollamaProvider.config.TokenManagement.IsPriced(providerName, ollamaProvider.config.Model) {
		return 0
	}
	input := ollamaProvider.config.TokenManagement.EstimateTokens(request.SystemPrompt + request.Prompt)
	return ollamaProvider.config.TokenManagement.CalculateCost(providerName, ollamaProvider.config.Model, input, request.MaxTokens)
}

func (ollamaProvider *OllamaProvider) Generate(ctx context.Context, request models.GenerationRequest) (models.GenerationResponse, error) {
	reqBody := ollama_models.OllamaChatCompletionRequest{
		Model: ollamaProvider.config.Model,
		Messages: []ollama_models.Message{
			{Role: "system", Content: request.SystemPrompt},
			{Role: "user", Content: request.Prompt},
		},
		Stream: false,
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = ollamaProvider.config.MaxTokens
	}
	if ollamaProvider.config.Temperature != nil || maxTokens > 0 {
		reqBody.Options = &ollama_models.Options{Temperature: ollamaProvider.config.Temperature, NumPredict: maxTokens}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat", ollamaProvider.config.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ollamaProvider.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.GenerationResponse{}, fmt.Errorf("request canceled: %w", ctx.Err())
		}
		return models.GenerationResponse{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.GenerationResponse{}, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &models.StatusError{Provider: providerName, Code: resp.StatusCode}
		var apiError models.AIError
		if err := json.Unmarshal(body, &apiError); err == nil {
			statusErr.Message = apiError.Error.Message
		}
		if statusErr.Message == "" {
			// Ollama reports most failures as {"error": "..."}.
			var plain struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(body, &plain); err == nil {
				statusErr.Message = plain.Error
			}
		}
		return models.GenerationResponse{}, statusErr
	}

	var response ollama_models.OllamaChatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return models.GenerationResponse{}, fmt.Errorf("error unmarshalling response: %w", err)
	}

	text := strings.TrimSpace(response.Message.Content)
	if text == "" {
		return models.GenerationResponse{}, fmt.Errorf("ollama returned an empty completion")
	}

	result := models.GenerationResponse{
		Text:         text,
		Model:        ollamaProvider.config.Model,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
		TokensUsed:   response.PromptEvalCount + response.EvalCount,
	}
	if response.Model != "" {
		result.Model = response.Model
	}

	if ollamaProvider.config.TokenManagement != nil && result.TokensUsed > 0 {
		ollamaProvider.config.TokenManagement.UsedTokens(result.InputTokens, result.OutputTokens)
		result.Cost = ollamaProvider.config.TokenManagement.CalculateCost(providerName, ollamaProvider.config.Model, result.InputTokens, result.OutputTokens)
	}

	return result, nil
}
