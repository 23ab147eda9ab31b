package token_management

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/embed_data"
	"github.com/meysamhadeli/docai/token_management/contracts"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const defaultEncoding = "cl100k_base"

// TokenManager implementation
type tokenManager struct {
	mu              sync.Mutex
	usedToken       int
	usedInputToken  int
	usedOutputToken int

	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
}

type details struct {
	MaxTokens                      int     `json:"max_tokens"`
	MaxInputTokens                 int     `json:"max_input_tokens"`
	MaxOutputTokens                int     `json:"max_output_tokens"`
	InputCostPerMillionTokens      float64 `json:"input_cost_per_million_tokens,omitempty"`
	OutputCostPerMillionTokens     float64 `json:"output_cost_per_million_tokens,omitempty"`
	CacheReadInputMillionTokenCost float64 `json:"cache_read_input_million_token_cost,omitempty"`
	Mode                           string  `json:"mode"`
}

type Models struct {
	ModelDetails map[string]details `json:"models"`
}

var (
	modelsOnce   sync.Once
	parsedModels Models
	parseErr     error
)

// NewTokenManager creates a new token manager
func NewTokenManager() contracts.ITokenManagement {
	return &tokenManager{}
}

// UsedTokens accumulates the token count for the run. Safe for concurrent workers.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.usedInputToken += inputToken
	tm.usedOutputToken += outputToken
	tm.usedToken += inputToken + outputToken
}

func (tm *tokenManager) DisplayTokens(providerName string, modelName string) {
	total, input, output := tm.GetCurrentTokenUsage()
	cost := tm.CalculateCost(providerName, modelName, input, output)

	tokenInfo := fmt.Sprintf("Token Used: %d - Cost: %.6f $ - Model: %s", total, cost, modelName)
	fmt.Println(lipgloss.BoxStyle.Render(tokenInfo))
}

func (tm *tokenManager) GetCurrentTokenUsage() (total int, input int, output int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.usedToken, tm.usedInputToken, tm.usedOutputToken
}

// EstimateTokens counts tokens with the cl100k encoding, or approximates four
// characters per token when the encoding cannot be loaded.
func (tm *tokenManager) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	tm.encodingOnce.Do(func() {
		// The embedded BPE ranks keep estimation offline.
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err == nil {
			tm.encoding = enc
		}
	})

	if tm.encoding != nil {
		return len(tm.encoding.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// IsPriced reports whether the price table has a non zero price for the model.
func (tm *tokenManager) IsPriced(providerName string, modelName string) bool {
	modelDetails, err := getModelDetails(providerName, modelName)
	if err != nil {
		return false
	}
	return modelDetails.InputCostPerMillionTokens > 0 || modelDetails.OutputCostPerMillionTokens > 0
}

func (tm *tokenManager) CalculateCost(providerName string, modelName string, inputToken int, outputToken int) float64 {
	modelDetails, err := getModelDetails(providerName, modelName)
	if err != nil {
		return 0
	}

	inputCost := float64(inputToken) * modelDetails.InputCostPerMillionTokens / 1000000.0
	outputCost := float64(outputToken) * modelDetails.OutputCostPerMillionTokens / 1000000.0

	return inputCost + outputCost
}

func getModelDetails(providerName string, modelName string) (details, error) {
	providerName = strings.ToLower(providerName)
	modelName = strings.ToLower(modelName)

	if strings.HasPrefix(providerName, "azure") {
		modelName = "azure/" + modelName
	}

	modelsOnce.Do(func() {
		parsedModels = Models{ModelDetails: make(map[string]details)}
		parseErr = json.Unmarshal(embed_data.ModelDetails, &parsedModels)
	})
	if parseErr != nil {
		return details{}, fmt.Errorf("failed to parse model details: %w", parseErr)
	}

	model, exists := parsedModels.ModelDetails[modelName]
	if !exists {
		return details{}, fmt.Errorf("model details price with name '%s' not found for provider '%s'", modelName, providerName)
	}

	return model, nil
}
