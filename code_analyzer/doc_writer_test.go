package code_analyzer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertDocumentation_MissingDoc(t *testing.T) {
	analyzer, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/shapes.go#Circle")

	writer := NewDocWriter(analyzer.Cache())
	require.NoError(t, writer.InsertDocumentation(symbol.FilePath, symbol, "Circle is a round shape."))

	content, err := os.ReadFile(symbol.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "}\n\n// Circle is a round shape.\ntype Circle struct {\n")

	again, _, err := analyzer.AnalyzeProject(testContext(), filepath.Dir(filepath.Dir(symbol.FilePath)))
	require.NoError(t, err)
	assert.Equal(t, models.DocDocumented, symbolByID(t, again, symbol.ID).DocStatus)
}

func TestInsertDocumentation_ReplacesOutdatedDoc(t *testing.T) {
	_, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/shapes.go#Circle.Area")

	require.NoError(t, NewDocWriter(nil).InsertDocumentation(symbol.FilePath, symbol, "Area returns the area of c.\n\nIt is never negative."))

	content, err := os.ReadFile(symbol.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "computes the area")
	assert.Contains(t, string(content), "// Area returns the area of c.\n//\n// It is never negative.\nfunc (c *Circle) Area() float64 {")
}

func TestInsertDocumentation_KeepsDirectives(t *testing.T) {
	_, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/shapes.go#NewCircle")

	require.NoError(t, NewDocWriter(nil).InsertDocumentation(symbol.FilePath, symbol, "NewCircle builds a circle."))

	content, err := os.ReadFile(symbol.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "// NewCircle builds a circle.\n//go:noinline\nfunc NewCircle(r float64) *Circle {")
}

func TestInsertDocumentation_IndentsGroupedSpec(t *testing.T) {
	_, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/shapes.go#Size")

	require.NoError(t, NewDocWriter(nil).InsertDocumentation(symbol.FilePath, symbol, "Size is a width and height."))

	content, err := os.ReadFile(symbol.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "\tPoint struct{ X, Y int }\n\t// Size is a width and height.\n\tSize struct{ W, H int }\n")
}

func TestInsertDocumentation_PreservesMode(t *testing.T) {
	_, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/util.go#Unit")
	require.NoError(t, os.Chmod(symbol.FilePath, 0o600))

	require.NoError(t, NewDocWriter(nil).InsertDocumentation(symbol.FilePath, symbol, "Unit returns the unit circle."))

	info, err := os.Stat(symbol.FilePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRenderFile_MultipleInsertions(t *testing.T) {
	_, symbols := analyzedFixture(t)
	circle := symbolByID(t, symbols, "pkg/shapes.go#Circle")
	size := symbolByID(t, symbols, "pkg/shapes.go#Size")

	original, updated, err := NewDocWriter(nil).RenderFile(circle.FilePath, []models.Insertion{
		{Symbol: size, Text: "Size is a width and height."},
		{Symbol: circle, Text: "Circle is a round shape."},
	})
	require.NoError(t, err)

	assert.Equal(t, shapesSource, string(original))
	assert.Contains(t, string(updated), "// Circle is a round shape.\ntype Circle struct {")
	assert.Contains(t, string(updated), "\t// Size is a width and height.\n\tSize struct{ W, H int }")

	onDisk, err := os.ReadFile(circle.FilePath)
	require.NoError(t, err)
	assert.Equal(t, shapesSource, string(onDisk), "RenderFile must not touch the file")
}

func TestRenderFile_Errors(t *testing.T) {
	_, symbols := analyzedFixture(t)
	circle := symbolByID(t, symbols, "pkg/shapes.go#Circle")

	_, _, err := NewDocWriter(nil).RenderFile(circle.FilePath, []models.Insertion{{Symbol: circle, Text: "```\n```"}})
	assert.ErrorContains(t, err, "empty documentation")

	_, _, err = NewDocWriter(nil).RenderFile(circle.FilePath, []models.Insertion{
		{Symbol: circle, Text: "Circle one."},
		{Symbol: circle, Text: "Circle two."},
	})
	assert.ErrorContains(t, err, "share a doc comment")

	gone := circle
	gone.Name = "Gone"
	_, _, err = NewDocWriter(nil).RenderFile(circle.FilePath, []models.Insertion{{Symbol: gone, Text: "Gone."}})
	assert.ErrorContains(t, err, "not found")
}

func TestFormatDocComment(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		indent string
		want   []string
	}{
		{"plain", "Run starts.", "", []string{"// Run starts."}},
		{"indented", "Run starts.", "\t", []string{"\t// Run starts."}},
		{"paragraphs", "Run starts.\n\nIt blocks.", "", []string{"// Run starts.", "//", "// It blocks."}},
		{"existing markers", "// Run starts.\n//It blocks.", "", []string{"// Run starts.", "// It blocks."}},
		{"fenced", "```go\nRun starts.\n```", "", []string{"// Run starts."}},
		{"trimmed blank lines", "\n\nRun starts.\n\n", "", []string{"// Run starts."}},
		{"crlf", "Run starts.\r\nIt blocks.", "", []string{"// Run starts.", "// It blocks."}},
		{"empty", "   ", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDocComment(tt.text, tt.indent))
		})
	}
}

func TestInsertDocumentation_RefusesSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	_, symbols := analyzedFixture(t)
	symbol := symbolByID(t, symbols, "pkg/util.go#Unit")

	target := filepath.Join(t.TempDir(), "util.go")
	require.NoError(t, os.Rename(symbol.FilePath, target))
	require.NoError(t, os.Symlink(target, symbol.FilePath))

	err := NewDocWriter(nil).InsertDocumentation(symbol.FilePath, symbol, "Unit returns the unit circle.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")

	info, err := os.Lstat(symbol.FilePath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "the link must survive")

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, utilSource, string(content))
}
