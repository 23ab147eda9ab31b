package utils

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/meysamhadeli/docai/code_analyzer/contracts"
	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultTheme is the chroma style used for highlighted previews.
const DefaultTheme = "dracula"

// PreviewRenderer shows pending doc comments before anything is written.
type PreviewRenderer interface {
	BuildPreview(suggestions []models.Insertion) (string, error)
}

// DiffPreviewRenderer renders one unified diff per file.
type DiffPreviewRenderer struct {
	writer contracts.IDocWriter
	root   string
	theme  string
	color  bool
}

// NewDiffPreviewRenderer renders diffs with paths relative to root. With color
// set the diff is highlighted for a 256 color terminal.
func NewDiffPreviewRenderer(writer contracts.IDocWriter, root, theme string, color bool) *DiffPreviewRenderer {
	if theme == "" {
		theme = DefaultTheme
	}
	return &DiffPreviewRenderer{writer: writer, root: root, theme: theme, color: color}
}

func (r *DiffPreviewRenderer) BuildPreview(suggestions []models.Insertion) (string, error) {
	byFile := make(map[string][]models.Insertion)
	for _, suggestion := range suggestions {
		byFile[suggestion.Symbol.FilePath] = append(byFile[suggestion.Symbol.FilePath], suggestion)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	var preview strings.Builder
	for _, file := range files {
		original, updated, err := r.writer.RenderFile(file, byFile[file])
		if err != nil {
			return "", fmt.Errorf("failed to render preview of %s: %w", file, err)
		}

		name := r.displayName(file)
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(original)),
			B:        difflib.SplitLines(string(updated)),
			FromFile: "a/" + name,
			ToFile:   "b/" + name,
			Context:  2,
		})
		if err != nil {
			return "", fmt.Errorf("failed to diff %s: %w", file, err)
		}
		preview.WriteString(diff)
	}

	if !r.color || preview.Len() == 0 {
		return preview.String(), nil
	}

	var highlighted bytes.Buffer
	if err := quick.Highlight(&highlighted, preview.String(), "diff", "terminal256", r.theme); err != nil {
		return preview.String(), nil
	}
	return highlighted.String(), nil
}

func (r *DiffPreviewRenderer) displayName(file string) string {
	if r.root != "" {
		if rel, err := filepath.Rel(r.root, file); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(file)
}
