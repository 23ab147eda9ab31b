package doc_generator

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/doc_generator/contracts"
	"github.com/meysamhadeli/docai/embed_data"
	provider_models "github.com/meysamhadeli/docai/providers/models"
)

// DefaultMaxTokens bounds the length of one generated comment.
const DefaultMaxTokens = 300

type PromptBuilder struct {
	systemPrompt string
	maxTokens    int
}

var _ contracts.IPromptBuilder = (*PromptBuilder)(nil)

// NewPromptBuilder uses the embedded doc comment prompt as system prompt.
// maxTokens <= 0 selects DefaultMaxTokens.
func NewPromptBuilder(maxTokens int) *PromptBuilder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &PromptBuilder{
		systemPrompt: strings.TrimSpace(string(embed_data.DocCommentPrompt)),
		maxTokens:    maxTokens,
	}
}

// Build renders the user prompt for symbol.
func (b *PromptBuilder) Build(symbol models.ApiSymbol, apiContext models.ApiContext) provider_models.GenerationRequest {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "Write the doc comment for the exported %s `%s`.\n\n", symbol.Kind, symbol.QualifiedName)
	fmt.Fprintf(&prompt, "Location: %s:%d\n\n", symbol.RelativePath, symbol.Line)
	fmt.Fprintf(&prompt, "Signature:\n```go\n%s\n```\n", symbol.Signature)

	writeList(&prompt, "Parameters", apiContext.ParameterTypes)
	writeList(&prompt, "Results", apiContext.ReturnTypes)
	writeList(&prompt, "Related types", apiContext.RelatedTypes)

	if symbol.DocStatus == models.DocOutdated && symbol.ExistingDoc != "" {
		fmt.Fprintf(&prompt, "\nThe current comment does not follow Go conventions; rewrite it:\n%s\n", symbol.ExistingDoc)
	}

	if apiContext.Implementation != "" {
		fmt.Fprintf(&prompt, "\nImplementation:\n```go\n%s\n```\n", apiContext.Implementation)
	}

	if len(apiContext.CallSites) > 0 {
		prompt.WriteString("\nCall sites:\n")
		for _, site := range apiContext.CallSites {
			fmt.Fprintf(&prompt, "- %s\n", site)
		}
	}

	return provider_models.GenerationRequest{
		SymbolID:     symbol.ID,
		SystemPrompt: b.systemPrompt,
		Prompt:       prompt.String(),
		MaxTokens:    b.maxTokens,
	}
}

func writeList(prompt *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(prompt, "%s: %s\n", title, strings.Join(items, ", "))
}
