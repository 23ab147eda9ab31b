package code_analyzer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/meysamhadeli/docai/code_analyzer/contracts"
	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
)

// DefaultMaxFileSize skips generated or vendored giants.
const DefaultMaxFileSize = 1 << 20

// CodeAnalyzer handles the analysis of Go project files. It also collects
// the context of the symbols it found.
type CodeAnalyzer struct {
	cache       *FileCache
	logger      *pterm.Logger
	maxFileSize int64

	mu        sync.RWMutex
	root      string
	files     []string
	typeNames map[string]bool
}

var (
	_ contracts.ICodeAnalyzer     = (*CodeAnalyzer)(nil)
	_ contracts.IContextCollector = (*CodeAnalyzer)(nil)
)

type AnalyzerOption func(*CodeAnalyzer)

func WithAnalyzerLogger(logger *pterm.Logger) AnalyzerOption {
	return func(a *CodeAnalyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithFileCache(cache *FileCache) AnalyzerOption {
	return func(a *CodeAnalyzer) {
		if cache != nil {
			a.cache = cache
		}
	}
}

func WithMaxFileSize(size int64) AnalyzerOption {
	return func(a *CodeAnalyzer) {
		if size > 0 {
			a.maxFileSize = size
		}
	}
}

// NewCodeAnalyzer initializes a new CodeAnalyzer.
func NewCodeAnalyzer(opts ...AnalyzerOption) *CodeAnalyzer {
	analyzer := &CodeAnalyzer{
		cache:       NewFileCache(),
		logger:      utils.DiscardLogger(),
		maxFileSize: DefaultMaxFileSize,
		typeNames:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(analyzer)
	}
	return analyzer
}

// Cache exposes the file cache shared with the writer.
func (analyzer *CodeAnalyzer) Cache() *FileCache {
	return analyzer.cache
}

// AnalyzeProject finds every exported function, method and type of the non test
// Go files under projectPath. Unreadable or unparsable files become diagnostics.
func (analyzer *CodeAnalyzer) AnalyzeProject(ctx context.Context, projectPath string) ([]models.ApiSymbol, []models.Diagnostic, error) {
	root, err := utils.CanonicalPath(projectPath)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("project path %s is not a directory", root)
	}

	var diagnostics []models.Diagnostic

	matcher, err := utils.NewIgnoreMatcher(root)
	if err != nil {
		diagnostics = append(diagnostics, models.Diagnostic{FilePath: root, Severity: models.SeverityWarning, Message: err.Error()})
	}

	files, walkDiagnostics, err := analyzer.sourceFiles(ctx, root, matcher)
	if err != nil {
		return nil, diagnostics, err
	}
	diagnostics = append(diagnostics, walkDiagnostics...)

	var symbols []models.ApiSymbol
	typeNames := make(map[string]bool)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, diagnostics, err
		}

		fileSymbols, fileDiagnostics := analyzer.analyzeFile(ctx, root, file)
		diagnostics = append(diagnostics, fileDiagnostics...)
		for _, symbol := range fileSymbols {
			if symbol.Kind == models.KindType {
				typeNames[symbol.Name] = true
			}
		}
		symbols = append(symbols, fileSymbols...)
	}

	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].RelativePath != symbols[j].RelativePath {
			return symbols[i].RelativePath < symbols[j].RelativePath
		}
		return symbols[i].Line < symbols[j].Line
	})

	analyzer.mu.Lock()
	analyzer.root = root
	analyzer.files = files
	analyzer.typeNames = typeNames
	analyzer.mu.Unlock()

	for _, d := range diagnostics {
		analyzer.logger.Debug("analysis diagnostic", analyzer.logger.Args("file", d.FilePath, "severity", string(d.Severity), "message", d.Message))
	}

	return symbols, diagnostics, nil
}

func (analyzer *CodeAnalyzer) sourceFiles(ctx context.Context, root string, matcher *utils.IgnoreMatcher) ([]string, []models.Diagnostic, error) {
	var files []string
	var diagnostics []models.Diagnostic

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			diagnostics = append(diagnostics, models.Diagnostic{FilePath: path, Severity: models.SeverityWarning, Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relativePath, err := filepath.Rel(root, path)
		if err != nil || relativePath == "." {
			return nil
		}
		relativePath = filepath.ToSlash(relativePath)

		if d.IsDir() {
			// The go tool ignores directories starting with "." or "_".
			if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") ||
				matcher.ShouldIgnore(relativePath) || matcher.ShouldIgnore(relativePath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if matcher.ShouldIgnore(relativePath) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			diagnostics = append(diagnostics, models.Diagnostic{FilePath: path, Severity: models.SeverityWarning, Message: "skipping symlinked source file"})
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, diagnostics, err
	}
	return files, diagnostics, nil
}

func (analyzer *CodeAnalyzer) analyzeFile(ctx context.Context, root, path string) ([]models.ApiSymbol, []models.Diagnostic) {
	if entry, ok := analyzer.cache.Get(path); ok && entry.Analyzed && entry.Root == root {
		return entry.Symbols, nil
	}

	relativePath, _ := filepath.Rel(root, path)
	relativePath = filepath.ToSlash(relativePath)

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, []models.Diagnostic{{FilePath: relativePath, Severity: models.SeverityError, Message: fmt.Sprintf("failed to get file info: %v", err)}}
	}
	if fileInfo.Size() > analyzer.maxFileSize {
		return nil, []models.Diagnostic{{FilePath: relativePath, Severity: models.SeverityWarning, Message: fmt.Sprintf("skipped, file is larger than %d bytes", analyzer.maxFileSize)}}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, []models.Diagnostic{{FilePath: relativePath, Severity: models.SeverityError, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}

	tree, err := parseGo(ctx, content)
	if err != nil {
		return nil, []models.Diagnostic{{FilePath: relativePath, Severity: models.SeverityError, Message: err.Error()}}
	}
	defer tree.Close()

	var diagnostics []models.Diagnostic
	rootNode := tree.RootNode()
	if rootNode.HasError() {
		diagnostics = append(diagnostics, models.Diagnostic{FilePath: relativePath, Severity: models.SeverityWarning, Message: "file has syntax errors, symbols may be incomplete"})
	}

	pkg := packageName(rootNode, content)
	lines := strings.Split(string(content), "\n")

	var symbols []models.ApiSymbol
	for _, decl := range declarations(rootNode, content) {
		if !isExported(decl.name) {
			continue
		}
		if decl.kind == models.KindMethod && !isExported(decl.receiver) {
			continue
		}

		start, end := docBlock(lines, int(decl.anchor.StartPoint().Row))
		existing := commentText(lines[start:end])

		name := decl.name
		if decl.receiver != "" {
			name = decl.receiver + "." + decl.name
		}

		symbols = append(symbols, models.ApiSymbol{
			ID:            relativePath + "#" + name,
			Name:          decl.name,
			Receiver:      decl.receiver,
			Package:       pkg,
			QualifiedName: pkg + "." + name,
			FilePath:      path,
			RelativePath:  relativePath,
			Line:          int(decl.node.StartPoint().Row) + 1,
			Signature:     signatureOf(decl, content),
			Kind:          decl.kind,
			DocStatus:     classifyDoc(decl.name, existing),
			ExistingDoc:   existing,
		})
	}

	_ = analyzer.cache.Set(path, &CacheEntry{Content: content, Package: pkg, Symbols: symbols, Analyzed: true, Root: root})
	return symbols, diagnostics
}
