package code_analyzer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/meysamhadeli/docai/code_analyzer/models"
)

const (
	maxImplementationLines = 40
	maxCallSites           = 5
)

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// CollectContext returns parameters, results, an implementation excerpt, call
// sites and related project types of symbol. Call sites and related types come
// from the last project passed to AnalyzeProject.
func (analyzer *CodeAnalyzer) CollectContext(ctx context.Context, symbol models.ApiSymbol) (models.ApiContext, error) {
	content, err := analyzer.cache.ReadFile(symbol.FilePath)
	if err != nil {
		return models.ApiContext{}, fmt.Errorf("failed to read %s: %w", symbol.FilePath, err)
	}

	tree, err := parseGo(ctx, content)
	if err != nil {
		return models.ApiContext{}, err
	}
	defer tree.Close()

	decl, ok := findDeclaration(tree.RootNode(), content, symbol)
	if !ok {
		return models.ApiContext{}, fmt.Errorf("symbol %s not found in %s", symbol.QualifiedName, symbol.FilePath)
	}

	apiContext := models.ApiContext{
		SymbolID:       symbol.ID,
		Implementation: excerpt(decl.node.Content(content), maxImplementationLines),
	}

	if decl.kind != models.KindType {
		if params := decl.node.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				param := params.NamedChild(i)
				if param.Type() == "comment" {
					continue
				}
				apiContext.ParameterTypes = append(apiContext.ParameterTypes, strings.Join(strings.Fields(param.Content(content)), " "))
			}
		}
		if result := decl.node.ChildByFieldName("result"); result != nil {
			if result.Type() == "parameter_list" {
				for i := 0; i < int(result.NamedChildCount()); i++ {
					apiContext.ReturnTypes = append(apiContext.ReturnTypes, result.NamedChild(i).Content(content))
				}
			} else {
				apiContext.ReturnTypes = append(apiContext.ReturnTypes, result.Content(content))
			}
		}
	}

	analyzer.mu.RLock()
	root := analyzer.root
	files := append([]string(nil), analyzer.files...)
	typeNames := analyzer.typeNames
	analyzer.mu.RUnlock()

	apiContext.RelatedTypes = relatedTypes(symbol, typeNames)

	callSites, err := analyzer.callSites(ctx, root, files, symbol)
	if err != nil {
		return apiContext, err
	}
	apiContext.CallSites = callSites

	return apiContext, nil
}

func excerpt(code string, maxLines int) string {
	lines := strings.Split(code, "\n")
	if len(lines) <= maxLines {
		return code
	}
	return strings.Join(lines[:maxLines], "\n") + "\n\t// ..."
}

// relatedTypes lists project types named in the signature of symbol, in order of appearance.
func relatedTypes(symbol models.ApiSymbol, typeNames map[string]bool) []string {
	var related []string
	seen := map[string]bool{symbol.Name: true}
	for _, ident := range identifierPattern.FindAllString(symbol.Signature, -1) {
		if seen[ident] || !typeNames[ident] {
			continue
		}
		seen[ident] = true
		related = append(related, ident)
	}
	return related
}

func (analyzer *CodeAnalyzer) callSites(ctx context.Context, root string, files []string, symbol models.ApiSymbol) ([]string, error) {
	var pattern *regexp.Regexp
	switch symbol.Kind {
	case models.KindMethod:
		pattern = regexp.MustCompile(`\.` + regexp.QuoteMeta(symbol.Name) + `\(`)
	case models.KindFunction:
		pattern = regexp.MustCompile(`\b` + regexp.QuoteMeta(symbol.Name) + `\(`)
	default:
		pattern = regexp.MustCompile(`\b` + regexp.QuoteMeta(symbol.Name) + `\b`)
	}

	var sites []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return sites, err
		}

		content, err := analyzer.cache.ReadFile(file)
		if err != nil {
			continue
		}

		relativePath, _ := filepath.Rel(root, file)
		relativePath = filepath.ToSlash(relativePath)

		scanner := bufio.NewScanner(bytes.NewReader(content))
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		lineNumber := 0
		for scanner.Scan() {
			lineNumber++
			if file == symbol.FilePath && lineNumber == symbol.Line {
				continue
			}
			line := scanner.Text()
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "//") || !pattern.MatchString(line) {
				continue
			}
			if symbol.Kind != models.KindMethod && strings.HasPrefix(trimmed, "func ") && strings.Contains(trimmed, " "+symbol.Name+"(") {
				continue
			}
			sites = append(sites, fmt.Sprintf("%s:%d: %s", relativePath, lineNumber, trimmed))
			if len(sites) >= maxCallSites {
				return sites, nil
			}
		}
	}
	return sites, nil
}
