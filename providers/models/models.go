package models

import "fmt"

// GenerationRequest is one documentation request for one symbol.
type GenerationRequest struct {
	SymbolID     string
	SystemPrompt string
	Prompt       string
	MaxTokens    int
}

// GenerationResponse is what a provider returns for a GenerationRequest.
type GenerationResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	TokensUsed   int
	Cost         float64
}

// Route selects which provider of a gateway serves a call.
type Route int

const (
	RoutePrimary Route = iota
	RouteFallback
)

func (r Route) String() string {
	switch r {
	case RoutePrimary:
		return "primary"
	case RouteFallback:
		return "fallback"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// GatewayResult is a provider response together with who served it.
type GatewayResult struct {
	Response GenerationResponse
	Provider string
	Model    string
	Route    Route
}
