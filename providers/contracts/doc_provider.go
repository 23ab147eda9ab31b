package contracts

import (
	"context"

	"github.com/meysamhadeli/docai/providers/models"
)

// IDocProvider is a remote text-generation service that drafts documentation.
type IDocProvider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, request models.GenerationRequest) (models.GenerationResponse, error)
	EstimateCost(request models.GenerationRequest) float64
	// IsAvailable is a local credential probe; it never performs a network call.
	IsAvailable() bool
}

// IDocGateway routes generation calls between a primary and a fallback provider.
type IDocGateway interface {
	Generate(ctx context.Context, request models.GenerationRequest) (models.GatewayResult, error)
	ActiveProvider() IDocProvider
	IsAvailable() bool
}
