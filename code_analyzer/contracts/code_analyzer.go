package contracts

import (
	"context"

	"github.com/meysamhadeli/docai/code_analyzer/models"
)

// ICodeAnalyzer discovers exported API symbols and their documentation state.
type ICodeAnalyzer interface {
	AnalyzeProject(ctx context.Context, projectPath string) ([]models.ApiSymbol, []models.Diagnostic, error)
}

// IContextCollector gathers the context a provider needs to document a symbol.
type IContextCollector interface {
	CollectContext(ctx context.Context, symbol models.ApiSymbol) (models.ApiContext, error)
}

// IDocWriter places doc comments into source files.
type IDocWriter interface {
	InsertDocumentation(file string, symbol models.ApiSymbol, text string) error
	// RenderFile returns the file before and after applying docs, without writing it.
	RenderFile(file string, docs []models.Insertion) (original []byte, updated []byte, err error)
}
