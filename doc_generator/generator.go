package doc_generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	code_analyzer_contracts "github.com/meysamhadeli/docai/code_analyzer/contracts"
	code_analyzer_models "github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/doc_generator/contracts"
	"github.com/meysamhadeli/docai/doc_generator/models"
	"github.com/meysamhadeli/docai/dry_run_cache"
	provider_contracts "github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism is used when a batch is started with parallelism < 1.
const DefaultParallelism = 4

// ErrWorkerPanic marks entries whose worker panicked.
var ErrWorkerPanic = errors.New("panic while generating documentation")

type GeneratorConfig struct {
	Collector code_analyzer_contracts.IContextCollector
	Gateway   provider_contracts.IDocGateway
	Prompts   contracts.IPromptBuilder
	// Cache is consulted and filled in dry-run mode only. May be nil.
	Cache      contracts.IDryRunCache
	Logger     *pterm.Logger
	OnProgress func(models.BatchProgress)
	Clock      func() time.Time
}

// Generator fans symbols out over a bounded worker pool.
type Generator struct {
	collector  code_analyzer_contracts.IContextCollector
	gateway    provider_contracts.IDocGateway
	prompts    contracts.IPromptBuilder
	cache      contracts.IDryRunCache
	logger     *pterm.Logger
	onProgress func(models.BatchProgress)
	now        func() time.Time
}

var _ contracts.IDocGenerator = (*Generator)(nil)

func NewGenerator(config GeneratorConfig) *Generator {
	generator := &Generator{
		collector:  config.Collector,
		gateway:    config.Gateway,
		prompts:    config.Prompts,
		cache:      config.Cache,
		logger:     config.Logger,
		onProgress: config.OnProgress,
		now:        config.Clock,
	}
	if generator.prompts == nil {
		generator.prompts = NewPromptBuilder(0)
	}
	if generator.logger == nil {
		generator.logger = utils.DiscardLogger()
	}
	if generator.now == nil {
		generator.now = time.Now
	}
	return generator
}

// Generate drafts documentation for every symbol, at most parallelism at a time.
// It returns exactly one entry per symbol, in input order. Failures, including
// cancellation, are reported per entry and never abort the rest of the batch.
func (g *Generator) Generate(ctx context.Context, projectPath string, symbols []code_analyzer_models.ApiSymbol, parallelism int, dryRun bool) []models.GeneratedDocumentation {
	results := make([]models.GeneratedDocumentation, len(symbols))
	if len(symbols) == 0 {
		return results
	}
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}

	tracker := &progressTracker{total: len(symbols), started: time.Now(), notify: g.onProgress}
	scheduled := make([]bool, len(symbols))

	var group errgroup.Group
	group.SetLimit(parallelism)

	for i := range symbols {
		// Go blocks while the pool is full; re-check before each dispatch.
		if ctx.Err() != nil {
			break
		}
		scheduled[i] = true
		group.Go(func() error {
			results[i] = g.generateRecovered(ctx, projectPath, symbols[i], dryRun)
			tracker.record(results[i])
			return nil
		})
	}
	_ = group.Wait()

	for i, symbol := range symbols {
		if scheduled[i] {
			continue
		}
		results[i] = g.failed(symbol, "", ctx.Err())
		tracker.record(results[i])
	}

	return results
}

// generateRecovered turns a panic while drafting symbol into a failed entry.
func (g *Generator) generateRecovered(ctx context.Context, projectPath string, symbol code_analyzer_models.ApiSymbol, dryRun bool) (doc models.GeneratedDocumentation) {
	defer func() {
		if recovered := recover(); recovered != nil {
			g.logger.Error("panic while generating documentation", g.logger.Args("symbol", symbol.ID, "panic", fmt.Sprint(recovered)))
			doc = g.failed(symbol, "", fmt.Errorf("%w for %s: %v", ErrWorkerPanic, symbol.ID, recovered))
		}
	}()
	return g.generateOne(ctx, projectPath, symbol, dryRun)
}

func (g *Generator) generateOne(ctx context.Context, projectPath string, symbol code_analyzer_models.ApiSymbol, dryRun bool) models.GeneratedDocumentation {
	if err := ctx.Err(); err != nil {
		return g.failed(symbol, "", err)
	}

	apiContext, err := g.collector.CollectContext(ctx, symbol)
	if err != nil {
		g.logger.Warn("failed to collect context", g.logger.Args("symbol", symbol.ID, "error", err.Error()))
		return g.failed(symbol, "", fmt.Errorf("failed to collect context: %w", err))
	}
	request := g.prompts.Build(symbol, apiContext)

	if dryRun && g.cache != nil {
		if active := g.gateway.ActiveProvider(); active != nil {
			if entry, ok := g.cache.Lookup(projectPath, symbol.ID, active.Name()); ok {
				return models.GeneratedDocumentation{
					SymbolID:    symbol.ID,
					FilePath:    symbol.FilePath,
					Text:        entry.Text,
					Provider:    entry.Provider,
					Model:       active.Model(),
					GeneratedAt: entry.CachedAt,
					Status:      models.StatusPending,
					Cached:      true,
				}
			}
		}
	}

	result, err := g.gateway.Generate(ctx, request)
	if err != nil {
		g.logger.Debug("generation failed", g.logger.Args("symbol", symbol.ID, "provider", result.Provider, "error", err.Error()))
		return g.failed(symbol, result.Provider, err)
	}

	text := strings.TrimSpace(result.Response.Text)
	if text == "" {
		return g.failed(symbol, result.Provider, fmt.Errorf("provider %s returned an empty comment", result.Provider))
	}

	doc := models.GeneratedDocumentation{
		SymbolID:      symbol.ID,
		FilePath:      symbol.FilePath,
		Text:          text,
		Provider:      result.Provider,
		Model:         result.Model,
		TokensUsed:    result.Response.TokensUsed,
		EstimatedCost: result.Response.Cost,
		GeneratedAt:   g.now(),
		Status:        models.StatusPending,
	}

	if dryRun && g.cache != nil {
		entry := dry_run_cache.Entry{SymbolID: symbol.ID, Provider: result.Provider, Text: text, CachedAt: doc.GeneratedAt}
		if err := g.cache.SaveEntry(projectPath, entry); err != nil {
			g.logger.Warn("failed to cache dry-run result", g.logger.Args("symbol", symbol.ID, "error", err.Error()))
		}
	}

	return doc
}

func (g *Generator) failed(symbol code_analyzer_models.ApiSymbol, provider string, err error) models.GeneratedDocumentation {
	if err == nil {
		err = context.Canceled
	}
	return models.GeneratedDocumentation{
		SymbolID:    symbol.ID,
		FilePath:    symbol.FilePath,
		Provider:    provider,
		GeneratedAt: g.now(),
		Status:      models.StatusFailed,
		Error:       err,
	}
}

type progressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
	cached    int
	started   time.Time
	notify    func(models.BatchProgress)
}

// record counts one finished symbol. The callback runs under the lock, so
// progress renderers never see concurrent calls.
func (p *progressTracker) record(doc models.GeneratedDocumentation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	if doc.Status == models.StatusFailed {
		p.failed++
	}
	if doc.Cached {
		p.cached++
	}
	if p.notify != nil {
		p.notify(models.BatchProgress{
			Total:     p.total,
			Completed: p.completed,
			Failed:    p.failed,
			Cached:    p.cached,
			Elapsed:   time.Since(p.started),
		})
	}
}

// Summarize counts generated, cached and failed entries of a batch.
func Summarize(docs []models.GeneratedDocumentation) models.BatchStats {
	stats := models.BatchStats{Total: len(docs)}
	for _, doc := range docs {
		switch {
		case doc.Status == models.StatusFailed:
			stats.Failed++
		case doc.Cached:
			stats.Cached++
		default:
			stats.Generated++
		}
		stats.Tokens += doc.TokensUsed
		stats.Cost += doc.EstimatedCost
	}
	return stats
}
