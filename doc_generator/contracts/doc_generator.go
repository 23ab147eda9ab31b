package contracts

import (
	"context"

	code_analyzer_models "github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/doc_generator/models"
	"github.com/meysamhadeli/docai/dry_run_cache"
	provider_models "github.com/meysamhadeli/docai/providers/models"
)

// IDocGenerator drafts documentation for a batch of symbols.
type IDocGenerator interface {
	Generate(ctx context.Context, projectPath string, symbols []code_analyzer_models.ApiSymbol, parallelism int, dryRun bool) []models.GeneratedDocumentation
}

// IPromptBuilder turns a symbol and its context into a provider request.
type IPromptBuilder interface {
	Build(symbol code_analyzer_models.ApiSymbol, apiContext code_analyzer_models.ApiContext) provider_models.GenerationRequest
}

// IDryRunCache is the part of the dry-run cache the generator needs.
type IDryRunCache interface {
	Lookup(projectPath, symbolID, provider string) (dry_run_cache.Entry, bool)
	SaveEntry(projectPath string, entry dry_run_cache.Entry) error
}
