package providers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/providers/models"
	"github.com/meysamhadeli/docai/retry"
	"github.com/pterm/pterm"
	"golang.org/x/time/rate"
)

// FallbackThreshold is the number of consecutive primary failures after which
// the gateway switches to the fallback provider for the rest of the run.
const FallbackThreshold = 5

// GatewayConfig wires a Gateway.
type GatewayConfig struct {
	Primary  contracts.IDocProvider
	Fallback contracts.IDocProvider
	Policy   retry.Policy
	// RequestsPerMinute paces every attempt, retries included. Zero disables pacing.
	RequestsPerMinute int
	Logger            *pterm.Logger
}

// Gateway routes generation calls to a primary provider and, after repeated
// failures, to a fallback that passes its availability probe. It is safe for
// concurrent use.
type Gateway struct {
	primary  contracts.IDocProvider
	fallback contracts.IDocProvider
	policy   retry.Policy
	limiter  *rate.Limiter
	logger   *pterm.Logger

	consecutiveFailures atomic.Int32
	latched             atomic.Bool
}

var _ contracts.IDocGateway = (*Gateway)(nil)

func NewGateway(config GatewayConfig) *Gateway {
	g := &Gateway{
		primary:  config.Primary,
		fallback: config.Fallback,
		policy:   config.Policy,
		logger:   config.Logger,
	}
	if config.RequestsPerMinute > 0 {
		interval := time.Minute / time.Duration(config.RequestsPerMinute)
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	if g.logger == nil {
		g.logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return g
}

// IsAvailable reports whether either provider passes its credential probe.
func (g *Gateway) IsAvailable() bool {
	return (g.primary != nil && g.primary.IsAvailable()) || (g.fallback != nil && g.fallback.IsAvailable())
}

// ActiveProvider returns the provider the next call routes to.
func (g *Gateway) ActiveProvider() contracts.IDocProvider {
	return g.providerFor(g.route())
}

// ConsecutiveFailures returns the current primary failure streak.
func (g *Gateway) ConsecutiveFailures() int {
	return int(g.consecutiveFailures.Load())
}

func (g *Gateway) route() models.Route {
	if g.fallback == nil {
		return models.RoutePrimary
	}
	if g.latched.Load() || g.primary == nil {
		return models.RouteFallback
	}
	if !g.primary.IsAvailable() && g.fallback.IsAvailable() {
		return models.RouteFallback
	}
	return models.RoutePrimary
}

func (g *Gateway) providerFor(route models.Route) contracts.IDocProvider {
	if route == models.RouteFallback {
		return g.fallback
	}
	return g.primary
}

// Generate serves one symbol request under the retry policy.
func (g *Gateway) Generate(ctx context.Context, request models.GenerationRequest) (models.GatewayResult, error) {
	route := g.route()
	provider := g.providerFor(route)
	if provider == nil {
		return models.GatewayResult{}, ErrNoProvider
	}

	result := models.GatewayResult{Provider: provider.Name(), Model: provider.Model(), Route: route}

	var response models.GenerationResponse
	err := g.policy.Execute(ctx, func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := provider.Generate(ctx, request)
		if err != nil {
			return err
		}
		response = resp
		return nil
	})

	if err != nil {
		if route == models.RoutePrimary && retry.Classify(err) != retry.Cancelled && ctx.Err() == nil {
			g.recordPrimaryFailure(request.SymbolID, err)
		}
		return result, err
	}

	if route == models.RoutePrimary {
		g.consecutiveFailures.Store(0)
	}

	if response.Cost == 0 {
		response.Cost = g.estimateCost(provider, request)
	}
	if response.Model != "" {
		result.Model = response.Model
	}
	result.Response = response

	return result, nil
}

func (g *Gateway) recordPrimaryFailure(symbolID string, err error) {
	failures := g.consecutiveFailures.Add(1)
	if g.fallback == nil || failures < FallbackThreshold || !g.fallback.IsAvailable() {
		return
	}
	if g.latched.CompareAndSwap(false, true) {
		g.logger.Warn("switching to fallback provider", g.logger.Args(
			"primary", g.primary.Name(),
			"fallback", g.fallback.Name(),
			"consecutive_failures", failures,
			"symbol", symbolID,
			"error", err.Error(),
		))
	}
}

// estimateCost never fails the call; a panicking estimator counts as zero cost.
func (g *Gateway) estimateCost(provider contracts.IDocProvider, request models.GenerationRequest) (cost float64) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Debug("cost estimation failed", g.logger.Args("provider", provider.Name(), "panic", r))
			cost = 0
		}
	}()
	return provider.EstimateCost(request)
}
