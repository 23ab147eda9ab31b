package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meysamhadeli/docai/code_analyzer"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/doc_generator"
	"github.com/meysamhadeli/docai/doc_generator/models"
	"github.com/meysamhadeli/docai/orchestrator"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Draft and write doc comments for undocumented exported symbols",
	Long: `The 'generate' subcommand analyzes the Go project at path (default: the current directory),
drafts a doc comment for every exported symbol whose comment is missing or outdated, shows
the result as a diff and writes it after confirmation. A backup is taken before the first
write; if a write fails you are offered to restore it.

With --dry-run nothing is written and provider responses are cached, so repeated dry runs
are free.`,
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
		autoConfirm, _ := cmd.Flags().GetBool("yes")
		edit, _ := cmd.Flags().GetBool("edit")
		return handleGenerateCommand(rootDependencies, autoConfirm, edit)
	},
}

func init() {
	generateCmd.Flags().Bool("dry-run", false, "Generate and cache comments without touching any file.")
	generateCmd.Flags().IntP("parallelism", "p", doc_generator.DefaultParallelism, "Maximum number of symbols documented concurrently.")
	generateCmd.Flags().String("provider", "", "Primary provider (e.g., 'openai', 'ollama').")
	generateCmd.Flags().String("fallback-provider", "", "Provider used after the primary keeps failing.")
	generateCmd.Flags().BoolP("yes", "y", false, "Write comments and restore backups without asking.")
	generateCmd.Flags().BoolP("edit", "e", false, "Review and revise every drafted comment before the write confirmation.")

	rootCmd.AddCommand(generateCmd)
}

func handleGenerateCommand(rootDependencies *RootDependencies, autoConfirm bool, edit bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := rootDependencies.Config
	if !cfg.DryRun {
		warnUncommitted(rootDependencies.ProjectPath)
	}

	gateway, err := buildGateway(rootDependencies, cfg.Provider, cfg.FallbackProvider)
	if err != nil {
		return err
	}

	progress := newProgressView()
	writer := code_analyzer.NewDocWriter(rootDependencies.Analyzer.Cache())
	primary := cfg.ProviderConfig(cfg.Provider)

	generator := doc_generator.NewGenerator(doc_generator.GeneratorConfig{
		Collector:  rootDependencies.Analyzer,
		Gateway:    gateway,
		Prompts:    doc_generator.NewPromptBuilder(primary.MaxTokens),
		Cache:      rootDependencies.Cache,
		Logger:     rootDependencies.Logger,
		OnProgress: progress.update,
	})

	var editor utils.Editor
	if edit {
		editor = utils.NewEditor(os.Stdin, os.Stdout)
	}

	docOrchestrator := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Analyzer:     rootDependencies.Analyzer,
		Generator:    generator,
		Gateway:      gateway,
		Backups:      rootDependencies.Backups,
		Writer:       writer,
		Preview:      utils.NewDiffPreviewRenderer(writer, rootDependencies.ProjectPath, cfg.Theme, utils.IsTerminal(os.Stdout)),
		Confirmer:    utils.NewConfirmer(autoConfirm, os.Stdin, os.Stdout),
		Editor:       editor,
		Output:       os.Stdout,
		Logger:       rootDependencies.Logger,
		OnTransition: progress.transition,
	})

	result, runErr := docOrchestrator.Generate(ctx, models.GenerationOptions{
		ProjectPath:      rootDependencies.ProjectPath,
		Parallelism:      cfg.Parallelism,
		DryRun:           cfg.DryRun,
		Provider:         cfg.Provider,
		FallbackProvider: cfg.FallbackProvider,
		AutoConfirm:      autoConfirm,
	})
	progress.stop()

	cacheStats := rootDependencies.Analyzer.Cache().GetPerformanceStats()
	rootDependencies.Logger.Debug("source cache", rootDependencies.Logger.Args("requests", cacheStats.TotalRequests, "hits", cacheStats.CacheHits, "hit_rate", fmt.Sprintf("%.1f%%", cacheStats.HitRate)))

	if result != nil {
		printGenerationSummary(result, cfg.DryRun)
	}
	if active := gateway.ActiveProvider(); active != nil {
		rootDependencies.TokenManagement.DisplayTokens(active.Name(), active.Model())
	}

	if errors.Is(runErr, orchestrator.ErrNoProvider) {
		return fmt.Errorf("%w: configure an API key (e.g. OPENAI_API_KEY) or a local provider with --provider ollama", runErr)
	}
	return runErr
}

// progressView renders the analysis spinner and the generation progress bar.
// Its callbacks run on the orchestrator goroutine or under the generator's
// progress lock, never concurrently with each other.
type progressView struct {
	spinner *pterm.SpinnerPrinter
	bar     *pterm.ProgressbarPrinter
}

func newProgressView() *progressView {
	return &progressView{}
}

func (p *progressView) transition(from, to orchestrator.State) {
	switch {
	case to == orchestrator.StateAnalyzing:
		p.spinner, _ = newSpinner().Start("Analyzing project...")
	case from == orchestrator.StateAnalyzing:
		p.stopSpinner()
	case from == orchestrator.StateGenerating:
		p.stopBar()
	case to == orchestrator.StateWriting:
		p.spinner, _ = newSpinner().Start("Writing doc comments...")
	case from == orchestrator.StateWriting:
		p.stopSpinner()
	}
}

func (p *progressView) update(progress models.BatchProgress) {
	if p.bar == nil {
		p.bar, _ = pterm.DefaultProgressbar.WithTotal(progress.Total).WithTitle("Generating doc comments").WithRemoveWhenDone(true).Start()
	}
	if p.bar != nil {
		p.bar.UpdateTitle(fmt.Sprintf("Generating doc comments (%d failed, %d cached)", progress.Failed, progress.Cached))
		p.bar.Increment()
	}
}

func (p *progressView) stopSpinner() {
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
	}
}

func (p *progressView) stopBar() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}

func (p *progressView) stop() {
	p.stopSpinner()
	p.stopBar()
}

func printGenerationSummary(result *models.GenerationResult, dryRun bool) {
	stats := doc_generator.Summarize(result.Documentation)

	if dryRun {
		for _, doc := range result.Documentation {
			if !doc.Succeeded() {
				continue
			}
			source := doc.Provider
			if doc.Cached {
				source += ", cached"
			}
			fmt.Println(lipgloss.Info.Render(doc.SymbolID) + lipgloss.Gray.Render(" ("+source+")"))
			fmt.Println(doc.Text)
			fmt.Println()
		}
	}

	for _, doc := range result.Documentation {
		if doc.Status == models.StatusFailed && doc.Error != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("✗ %s: %v", doc.SymbolID, doc.Error)))
		}
	}

	lines := []string{
		fmt.Sprintf("Run: %s", result.RunID),
		fmt.Sprintf("Result: %s", result.FinalState),
		fmt.Sprintf("Symbols: %d generated, %d cached, %d failed", stats.Generated, stats.Cached, stats.Failed),
	}
	if !dryRun {
		lines = append(lines, fmt.Sprintf("Files written: %d", result.FilesWritten))
	}
	if result.FilesRestored > 0 {
		lines = append(lines, fmt.Sprintf("Files restored: %d", result.FilesRestored))
	}
	if result.BackupPath != "" {
		lines = append(lines, fmt.Sprintf("Backup: %s", result.BackupPath))
	}
	if result.Cause != nil && result.FinalState == string(orchestrator.StateRolledBack) {
		lines = append(lines, fmt.Sprintf("Cause: %v", result.Cause))
	}

	style := lipgloss.Green
	switch result.FinalState {
	case string(orchestrator.StateFailed):
		style = lipgloss.Red
	case string(orchestrator.StateRolledBack):
		style = lipgloss.Yellow
	}
	fmt.Println(lipgloss.BoxStyle.Render(style.Render(strings.Join(lines, "\n"))))
}
