package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Report doc comment coverage of the exported API",
	Long: `The 'analyze' subcommand lists exported functions, methods and types of the Go project at
path whose doc comment is missing or outdated, with per file coverage. No provider is called
and nothing is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath, err := projectArg(args, 0)
		if err != nil {
			return err
		}
		rootDependencies, err := handleRootCommand(cmd, projectPath)
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		return handleAnalyzeCommand(rootDependencies, verbose)
	},
}

func init() {
	analyzeCmd.Flags().BoolP("verbose", "V", false, "List every symbol that needs documentation.")
	rootCmd.AddCommand(analyzeCmd)
}

// Coverage counts symbols by documentation state.
type Coverage struct {
	Total      int
	Documented int
	Missing    int
	Outdated   int
}

// Percent is the share of documented symbols; an empty API is fully covered.
func (c Coverage) Percent() float64 {
	if c.Total == 0 {
		return 100
	}
	return float64(c.Documented) * 100 / float64(c.Total)
}

func (c *Coverage) add(symbol models.ApiSymbol) {
	c.Total++
	switch symbol.DocStatus {
	case models.DocDocumented:
		c.Documented++
	case models.DocMissing:
		c.Missing++
	case models.DocOutdated:
		c.Outdated++
	}
}

// coverageByFile returns the overall coverage and one entry per relative path.
func coverageByFile(symbols []models.ApiSymbol) (Coverage, map[string]*Coverage) {
	var total Coverage
	files := make(map[string]*Coverage)
	for _, symbol := range symbols {
		total.add(symbol)
		file := files[symbol.RelativePath]
		if file == nil {
			file = &Coverage{}
			files[symbol.RelativePath] = file
		}
		file.add(symbol)
	}
	return total, files
}

func handleAnalyzeCommand(rootDependencies *RootDependencies, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	spinner, _ := newSpinner().Start("Analyzing project...")
	symbols, diagnostics, err := rootDependencies.Analyzer.AnalyzeProject(ctx, rootDependencies.ProjectPath)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to analyze project: %w", err)
	}

	for _, d := range diagnostics {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("⚠ %s:%d: %s", d.FilePath, d.Line, d.Message)))
	}

	total, files := coverageByFile(symbols)
	paths := make([]string, 0, len(files))
	for path, coverage := range files {
		if verbose || coverage.Documented < coverage.Total {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	if len(paths) > 0 {
		data := pterm.TableData{{"File", "Symbols", "Missing", "Outdated", "Coverage"}}
		for _, path := range paths {
			coverage := files[path]
			data = append(data, []string{
				path,
				strconv.Itoa(coverage.Total),
				strconv.Itoa(coverage.Missing),
				strconv.Itoa(coverage.Outdated),
				fmt.Sprintf("%.1f%%", coverage.Percent()),
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	if verbose {
		for _, symbol := range symbols {
			if !symbol.DocStatus.NeedsDocumentation() {
				continue
			}
			status := lipgloss.Red.Render(string(symbol.DocStatus))
			if symbol.DocStatus == models.DocOutdated {
				status = lipgloss.Yellow.Render(string(symbol.DocStatus))
			}
			fmt.Printf("%s:%d %s %s\n", symbol.RelativePath, symbol.Line, lipgloss.BlueSky.Render(symbol.QualifiedName), status)
		}
	}

	if verbose {
		cacheStats := rootDependencies.Analyzer.Cache().GetPerformanceStats()
		fmt.Println(lipgloss.Info.Render(fmt.Sprintf("Source cache: %d read(s), %d hit(s), %.1f%% hit rate",
			cacheStats.TotalRequests, cacheStats.CacheHits, cacheStats.HitRate)))
	}

	summary := fmt.Sprintf("Exported symbols: %d - Documented: %d - Missing: %d - Outdated: %d - Coverage: %.1f%%",
		total.Total, total.Documented, total.Missing, total.Outdated, total.Percent())
	fmt.Println(lipgloss.BoxStyle.Render(summary))
	return nil
}
