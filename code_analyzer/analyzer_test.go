package code_analyzer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return context.Background()
}

const shapesSource = `package shapes

// Shape is anything with an area.
type Shape interface {
	Area() float64
}

type Circle struct {
	Radius float64
}

// computes the area
func (c *Circle) Area() float64 {
	return 3.14 * c.Radius * c.Radius
}

// NewCircle returns a circle of radius r.
//
//go:noinline
func NewCircle(r float64) *Circle {
	return &Circle{Radius: r}
}

func helper() {}

type (
	// Point is a location.
	Point struct{ X, Y int }
	Size struct{ W, H int }
)

type hidden struct{}

func (h hidden) Exported() {}
`

const utilSource = `package shapes

func Unit() *Circle {
	return NewCircle(1)
}
`

// newFixtureProject lays out a small project together with files the analyzer must skip.
func newFixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeTestFile(t, root, "pkg/shapes.go", shapesSource)
	writeTestFile(t, root, "pkg/util.go", utilSource)
	writeTestFile(t, root, "pkg/shapes_test.go", "package shapes\n\nfunc TestHelper() {}\n")
	writeTestFile(t, root, "pkg/api.pb.go", "package shapes\n\nfunc Generated() {}\n")
	writeTestFile(t, root, "vendor/dep/dep.go", "package dep\n\nfunc Dep() {}\n")
	writeTestFile(t, root, "_scratch/s.go", "package scratch\n\nfunc Scratch() {}\n")
	writeTestFile(t, root, ".hidden/h.go", "package hidden\n\nfunc Hidden() {}\n")
	writeTestFile(t, root, "generated/g.go", "package generated\n\nfunc G() {}\n")
	writeTestFile(t, root, ".docai-ignore", "# generated code\ngenerated\n*.pb.go\n")

	return root
}

func symbolByID(t *testing.T, symbols []models.ApiSymbol, id string) models.ApiSymbol {
	t.Helper()
	for _, symbol := range symbols {
		if symbol.ID == id {
			return symbol
		}
	}
	require.Failf(t, "symbol not found", "%s", id)
	return models.ApiSymbol{}
}

func TestAnalyzeProject_FindsExportedSymbols(t *testing.T) {
	root := newFixtureProject(t)

	symbols, diagnostics, err := NewCodeAnalyzer().AnalyzeProject(testContext(), root)
	require.NoError(t, err)
	assert.Empty(t, diagnostics)

	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		ids = append(ids, symbol.ID)
	}
	assert.Equal(t, []string{
		"pkg/shapes.go#Shape",
		"pkg/shapes.go#Circle",
		"pkg/shapes.go#Circle.Area",
		"pkg/shapes.go#NewCircle",
		"pkg/shapes.go#Point",
		"pkg/shapes.go#Size",
		"pkg/util.go#Unit",
	}, ids)
}

func TestAnalyzeProject_DocStatus(t *testing.T) {
	root := newFixtureProject(t)

	symbols, _, err := NewCodeAnalyzer().AnalyzeProject(testContext(), root)
	require.NoError(t, err)

	tests := []struct {
		id       string
		status   models.DocStatus
		existing string
	}{
		{"pkg/shapes.go#Shape", models.DocDocumented, "Shape is anything with an area."},
		{"pkg/shapes.go#Circle", models.DocMissing, ""},
		{"pkg/shapes.go#Circle.Area", models.DocOutdated, "computes the area"},
		{"pkg/shapes.go#NewCircle", models.DocDocumented, "NewCircle returns a circle of radius r."},
		{"pkg/shapes.go#Point", models.DocDocumented, "Point is a location."},
		{"pkg/shapes.go#Size", models.DocMissing, ""},
		{"pkg/util.go#Unit", models.DocMissing, ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			symbol := symbolByID(t, symbols, tt.id)
			assert.Equal(t, tt.status, symbol.DocStatus)
			assert.Equal(t, tt.existing, symbol.ExistingDoc)
		})
	}
}

func TestAnalyzeProject_SymbolFields(t *testing.T) {
	root := newFixtureProject(t)

	symbols, _, err := NewCodeAnalyzer().AnalyzeProject(testContext(), root)
	require.NoError(t, err)

	area := symbolByID(t, symbols, "pkg/shapes.go#Circle.Area")
	assert.Equal(t, "Area", area.Name)
	assert.Equal(t, "Circle", area.Receiver)
	assert.Equal(t, "shapes", area.Package)
	assert.Equal(t, "shapes.Circle.Area", area.QualifiedName)
	assert.Equal(t, models.KindMethod, area.Kind)
	assert.Equal(t, 13, area.Line)
	assert.Equal(t, "func (c *Circle) Area() float64", area.Signature)
	assert.Equal(t, "pkg/shapes.go", area.RelativePath)
	assert.True(t, filepath.IsAbs(area.FilePath))

	newCircle := symbolByID(t, symbols, "pkg/shapes.go#NewCircle")
	assert.Equal(t, models.KindFunction, newCircle.Kind)
	assert.Equal(t, 20, newCircle.Line)
	assert.Equal(t, "func NewCircle(r float64) *Circle", newCircle.Signature)

	circle := symbolByID(t, symbols, "pkg/shapes.go#Circle")
	assert.Equal(t, models.KindType, circle.Kind)
	assert.Equal(t, "type Circle struct", circle.Signature)
}

func TestAnalyzeProject_SyntaxErrorBecomesDiagnostic(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "ok.go", "package p\n\n// Fine is fine.\nfunc Fine() {}\n")
	writeTestFile(t, root, "broken.go", "package p\n\nfunc Broken( {\n")

	symbols, diagnostics, err := NewCodeAnalyzer().AnalyzeProject(testContext(), root)
	require.NoError(t, err)

	require.Len(t, diagnostics, 1)
	assert.Equal(t, "broken.go", diagnostics[0].FilePath)
	assert.Equal(t, models.SeverityWarning, diagnostics[0].Severity)
	assert.Contains(t, diagnostics[0].Message, "syntax errors")

	assert.Equal(t, "ok.go#Fine", symbolByID(t, symbols, "ok.go#Fine").ID)
}

func TestAnalyzeProject_OversizedFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "big.go", "package p\n\nfunc Big() {}\n")

	symbols, diagnostics, err := NewCodeAnalyzer(WithMaxFileSize(8)).AnalyzeProject(testContext(), root)
	require.NoError(t, err)
	assert.Empty(t, symbols)
	require.Len(t, diagnostics, 1)
	assert.Contains(t, diagnostics[0].Message, "larger than 8 bytes")
}

func TestAnalyzeProject_InvalidPath(t *testing.T) {
	analyzer := NewCodeAnalyzer()

	_, _, err := analyzer.AnalyzeProject(testContext(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := writeTestFile(t, t.TempDir(), "a.go", "package a\n")
	_, _, err = analyzer.AnalyzeProject(testContext(), file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestAnalyzeProject_Cancelled(t *testing.T) {
	root := newFixtureProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewCodeAnalyzer().AnalyzeProject(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeProject_ReusesCache(t *testing.T) {
	root := newFixtureProject(t)
	analyzer := NewCodeAnalyzer()

	first, _, err := analyzer.AnalyzeProject(testContext(), root)
	require.NoError(t, err)
	before := analyzer.Cache().GetPerformanceStats()

	second, _, err := analyzer.AnalyzeProject(testContext(), root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	after := analyzer.Cache().GetPerformanceStats()
	assert.Equal(t, int64(2), after.CacheHits-before.CacheHits)
	assert.Equal(t, before.CacheMisses, after.CacheMisses)
}

func TestClassifyDoc(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want models.DocStatus
	}{
		{"Run", "", models.DocMissing},
		{"Run", "Run starts the loop.", models.DocDocumented},
		{"Run", "A Run is a thing.", models.DocDocumented},
		{"Config", "The Config holds settings.", models.DocDocumented},
		{"Run", "Runner starts the loop.", models.DocOutdated},
		{"Run", "Starts the loop.", models.DocOutdated},
		{"Run", "Run's loop.", models.DocDocumented},
		{"Run", "Deprecated: use Start.", models.DocDocumented},
		{"Run", "A", models.DocOutdated},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.doc, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDoc(tt.name, tt.doc))
		})
	}
}

func TestDocBlock(t *testing.T) {
	lines := []string{
		"package p",
		"",
		"// Old is old.",
		"// More text.",
		"//go:generate stringer",
		"//nolint:all",
		"func Old() {}",
	}

	start, end := docBlock(lines, 6)
	assert.Equal(t, 2, start)
	assert.Equal(t, 4, end)
	assert.Equal(t, "Old is old.\nMore text.", commentText(lines[start:end]))

	start, end = docBlock(lines, 1)
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, end)
}

func TestAnalyzeProject_SkipsSymlinkedFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package p\n\nfunc A() {}\n")
	shared := writeTestFile(t, t.TempDir(), "b.go", "package p\n\nfunc B() {}\n")
	require.NoError(t, os.Symlink(shared, filepath.Join(root, "b.go")))

	symbols, diagnostics, err := NewCodeAnalyzer().AnalyzeProject(testContext(), root)
	require.NoError(t, err)

	require.Len(t, symbols, 1)
	assert.Equal(t, "a.go#A", symbols[0].ID)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "b.go", filepath.Base(diagnostics[0].FilePath))
	assert.Equal(t, models.SeverityWarning, diagnostics[0].Severity)
}
