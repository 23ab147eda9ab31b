package code_analyzer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/meysamhadeli/docai/code_analyzer/contracts"
	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/utils"
)

// DocWriter replaces or inserts doc comments directly above declarations.
type DocWriter struct {
	cache *FileCache
}

var _ contracts.IDocWriter = (*DocWriter)(nil)

// NewDocWriter returns a writer that invalidates cache entries of the files it
// writes. cache may be nil.
func NewDocWriter(cache *FileCache) *DocWriter {
	return &DocWriter{cache: cache}
}

type edit struct {
	start int
	end   int
	lines []string
}

// RenderFile applies docs to file in memory.
func (w *DocWriter) RenderFile(file string, docs []models.Insertion) ([]byte, []byte, error) {
	original, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	tree, err := parseGo(context.Background(), original)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()
	root := tree.RootNode()

	lines := strings.Split(string(original), "\n")
	edits := make([]edit, 0, len(docs))
	claimed := make(map[int]string, len(docs))

	for _, doc := range docs {
		decl, ok := findDeclaration(root, original, doc.Symbol)
		if !ok {
			return nil, nil, fmt.Errorf("symbol %s not found in %s", doc.Symbol.QualifiedName, file)
		}

		anchorRow := int(decl.anchor.StartPoint().Row)
		if other, taken := claimed[anchorRow]; taken {
			return nil, nil, fmt.Errorf("symbols %s and %s share a doc comment in %s", other, doc.Symbol.ID, file)
		}
		claimed[anchorRow] = doc.Symbol.ID

		indent := leadingWhitespace(lines[anchorRow])
		comment := FormatDocComment(doc.Text, indent)
		if len(comment) == 0 {
			return nil, nil, fmt.Errorf("empty documentation for %s", doc.Symbol.ID)
		}

		start, end := docBlock(lines, anchorRow)
		edits = append(edits, edit{start: start, end: end, lines: comment})
	}

	// Apply bottom up so earlier line numbers stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	for _, e := range edits {
		updated := make([]string, 0, len(lines)-(e.end-e.start)+len(e.lines))
		updated = append(updated, lines[:e.start]...)
		updated = append(updated, e.lines...)
		updated = append(updated, lines[e.end:]...)
		lines = updated
	}

	return original, []byte(strings.Join(lines, "\n")), nil
}

// InsertDocumentation writes text as the doc comment of symbol, replacing any
// existing one. The file is replaced atomically and keeps its mode; symlinks
// and other non regular files are refused.
func (w *DocWriter) InsertDocumentation(file string, symbol models.ApiSymbol, text string) error {
	info, err := os.Lstat(file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("refusing to replace %s: not a regular file", file)
	}

	_, updated, err := w.RenderFile(file, []models.Insertion{{Symbol: symbol, Text: text}})
	if err != nil {
		return err
	}

	if err := utils.WriteFileAtomic(file, updated, info.Mode().Perm()); err != nil {
		return err
	}
	if w.cache != nil {
		w.cache.Delete(file)
	}
	return nil
}

// FormatDocComment turns generated text into "//" lines with the given indent.
// Code fences and comment markers the provider may have added are dropped.
func FormatDocComment(text, indent string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			line = strings.TrimPrefix(strings.TrimPrefix(trimmed, "//"), " ")
		} else if strings.TrimSpace(line) == "" {
			line = ""
		}

		if line == "" {
			out = append(out, indent+"//")
		} else {
			out = append(out, indent+"// "+line)
		}
	}

	for len(out) > 0 && strings.TrimSpace(out[0]) == "//" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "//" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
