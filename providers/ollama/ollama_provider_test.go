package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meysamhadeli/docai/providers/models"
	ollama_models "github.com/meysamhadeli/docai/providers/ollama/models"
	"github.com/meysamhadeli/docai/token_management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ReturnsCompletionAndUsage(t *testing.T) {
	var received ollama_models.OllamaChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(ollama_models.OllamaChatCompletionResponse{
			Model:           "llama3.1",
			Message:         ollama_models.Message{Role: "assistant", Content: "  Parse reads a config file.\n"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       7,
		})
	}))
	defer server.Close()

	tm := token_management.NewTokenManager()
	provider := NewOllamaDocProvider(&OllamaConfig{BaseURL: server.URL + "/api/", Model: "llama3.1", TokenManagement: tm})

	resp, err := provider.Generate(context.Background(), models.GenerationRequest{
		SymbolID:     "config.go#Parse",
		SystemPrompt: "system",
		Prompt:       "document Parse",
	})

	require.NoError(t, err)
	assert.Equal(t, "Parse reads a config file.", resp.Text)
	assert.Equal(t, 19, resp.TokensUsed)
	assert.False(t, received.Stream)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "document Parse", received.Messages[1].Content)

	total, _, _ := tm.GetCurrentTokenUsage()
	assert.Equal(t, 19, total)
}

func TestGenerate_NonOKStatusCarriesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	provider := NewOllamaDocProvider(&OllamaConfig{BaseURL: server.URL, Model: "nope"})

	_, err := provider.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})

	var statusErr *models.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode())
	assert.Contains(t, statusErr.Message, "not found")
}

func TestGenerate_EmptyCompletionFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"   "},"done":true}`))
	}))
	defer server.Close()

	provider := NewOllamaDocProvider(&OllamaConfig{BaseURL: server.URL, Model: "m"})

	_, err := provider.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, NewOllamaDocProvider(&OllamaConfig{Model: "llama3.1"}).IsAvailable())
	assert.False(t, NewOllamaDocProvider(&OllamaConfig{}).IsAvailable())
}

func TestEstimateCost_LocalModelIsFree(t *testing.T) {
	provider := NewOllamaDocProvider(&OllamaConfig{BaseURL: "http://localhost:11434/api", Model: "llama3.1", TokenManagement: token_management.NewTokenManager()})

	assert.Zero(t, provider.EstimateCost(models.GenerationRequest{Prompt: "document Parse", MaxTokens: 256}))
}
