package code_analyzer

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// declaration is a top level Go declaration that can carry a doc comment.
type declaration struct {
	node *sitter.Node
	// anchor is the node whose first line the doc comment sits above.
	anchor   *sitter.Node
	kind     models.SymbolKind
	name     string
	receiver string
}

// parseGo parses Go source with tree-sitter. The caller closes the tree.
func parseGo(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return tree, nil
}

func packageName(root *sitter.Node, source []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if ident := child.NamedChild(j); ident.Type() == "package_identifier" {
				return ident.Content(source)
			}
		}
	}
	return ""
}

// declarations lists functions, methods and type specs in source order.
func declarations(root *sitter.Node, source []byte) []declaration {
	var decls []declaration

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)

		switch child.Type() {
		case "function_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				decls = append(decls, declaration{node: child, anchor: child, kind: models.KindFunction, name: name.Content(source)})
			}
		case "method_declaration":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			decls = append(decls, declaration{
				node:     child,
				anchor:   child,
				kind:     models.KindMethod,
				name:     name.Content(source),
				receiver: receiverType(child.ChildByFieldName("receiver"), source),
			})
		case "type_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				anchor := spec
				if spec.StartPoint().Row == child.StartPoint().Row {
					anchor = child
				}
				decls = append(decls, declaration{node: spec, anchor: anchor, kind: models.KindType, name: name.Content(source)})
			}
		}
	}

	return decls
}

// receiverType returns the base type name of a method receiver, without pointer or type arguments.
func receiverType(receiver *sitter.Node, source []byte) string {
	if receiver == nil {
		return ""
	}
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != "" {
			return
		}
		if n.Type() == "type_identifier" {
			found = n.Content(source)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(receiver)
	return found
}

func findDeclaration(root *sitter.Node, source []byte, symbol models.ApiSymbol) (declaration, bool) {
	for _, decl := range declarations(root, source) {
		if decl.kind == symbol.Kind && decl.name == symbol.Name && decl.receiver == symbol.Receiver {
			return decl, true
		}
	}
	return declaration{}, false
}

// signatureOf renders a one line signature of a declaration.
func signatureOf(decl declaration, source []byte) string {
	var raw string
	switch decl.kind {
	case models.KindType:
		raw = "type " + firstLine(decl.node.Content(source))
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "{")
	default:
		end := decl.node.EndByte()
		if body := decl.node.ChildByFieldName("body"); body != nil {
			end = body.StartByte()
		}
		raw = string(source[decl.node.StartByte():end])
	}
	return strings.Join(strings.Fields(raw), " ")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// docBlock locates the comment lines directly above anchorRow. Lines in
// [start, end) are the doc comment; compiler directives between end and the
// declaration are left alone.
func docBlock(lines []string, anchorRow int) (start int, end int) {
	i := anchorRow - 1
	for i >= 0 && strings.HasPrefix(strings.TrimSpace(lines[i]), "//") {
		i--
	}
	start = i + 1

	end = anchorRow
	for end > start && isDirective(lines[end-1]) {
		end--
	}
	return start, end
}

func isDirective(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") || len(trimmed) < 3 {
		return false
	}
	rest := trimmed[2:]
	if strings.HasPrefix(rest, "go:") || strings.HasPrefix(rest, "line ") || strings.HasPrefix(rest, "nolint") {
		return true
	}
	return strings.HasPrefix(rest, "export ")
}

// commentText strips the comment markers of doc lines.
func commentText(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimPrefix(strings.TrimSpace(line), "//")
		out = append(out, strings.TrimPrefix(text, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// classifyDoc decides whether doc describes name the way Go doc comments do.
func classifyDoc(name, doc string) models.DocStatus {
	fields := strings.Fields(doc)
	if len(fields) == 0 {
		return models.DocMissing
	}
	if strings.HasPrefix(fields[0], "Deprecated:") {
		return models.DocDocumented
	}

	word := fields[0]
	if (word == "A" || word == "An" || word == "The") && len(fields) > 1 {
		word = fields[1]
	}
	if !strings.HasPrefix(word, name) {
		return models.DocOutdated
	}
	next, _ := utf8.DecodeRuneInString(word[len(name):])
	if next != utf8.RuneError && (unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_') {
		return models.DocOutdated
	}
	return models.DocDocumented
}
