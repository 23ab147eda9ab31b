package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/ollama"
	"github.com/meysamhadeli/docai/providers/openai"
	contracts_token "github.com/meysamhadeli/docai/token_management/contracts"
)

// ErrNoProvider is returned when neither the primary nor the fallback provider can serve calls.
var ErrNoProvider = errors.New("no documentation provider available")

// AIProviderConfig holds the settings of one generation provider.
type AIProviderConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	ApiKey      string        `mapstructure:"api_key"`
	Temperature *float32      `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BuildProvider constructs the provider registered under name.
func BuildProvider(name string, config AIProviderConfig, tm contracts_token.ITokenManagement) (contracts.IDocProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "azure-openai", "openrouter":
		return openai.NewOpenAIDocProvider(&openai.OpenAIConfig{
			Name:            strings.ToLower(name),
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			ApiKey:          config.ApiKey,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			Timeout:         config.Timeout,
			TokenManagement: tm,
		}), nil
	case "ollama":
		return ollama.NewOllamaDocProvider(&ollama.OllamaConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			Timeout:         config.Timeout,
			TokenManagement: tm,
		}), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("provider '%s' is not supported", name)
	}
}
