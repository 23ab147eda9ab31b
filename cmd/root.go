package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meysamhadeli/docai/backup_manager"
	"github.com/meysamhadeli/docai/code_analyzer"
	"github.com/meysamhadeli/docai/config"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/dry_run_cache"
	"github.com/meysamhadeli/docai/providers"
	provider_contracts "github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/token_management"
	contracts_token "github.com/meysamhadeli/docai/token_management/contracts"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RootDependencies are shared by every subcommand of a project.
type RootDependencies struct {
	ProjectPath     string
	Config          *config.Config
	Logger          *pterm.Logger
	Analyzer        *code_analyzer.CodeAnalyzer
	Cache           *dry_run_cache.CacheManager
	Backups         *backup_manager.Manager
	TokenManagement contracts_token.ITokenManagement
}

var rootCmd = &cobra.Command{
	Use:   "docai",
	Short: "Generate Go doc comments for exported APIs with AI providers",
	Long: `docai finds exported functions, methods and types of a Go project whose doc comment
is missing or does not follow Go conventions, drafts comments with an AI provider, shows
them as a diff and writes them back after confirmation. Every write is preceded by a
backup that can be restored with 'docai rollback'.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd)
}

// projectArg returns the absolute project path given as args[index], or the
// working directory.
func projectArg(args []string, index int) (string, error) {
	path := "."
	if len(args) > index && args[index] != "" {
		path = args[index]
	}
	abs, err := filepath.Abs(utils.ExpandHome(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve project path %s: %w", path, err)
	}
	return abs, nil
}

func handleRootCommand(cmd *cobra.Command, projectPath string) (*RootDependencies, error) {
	cfg, err := config.Load(projectPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := utils.NewLogger(cfg.LogLevel, os.Stderr)
	if cfg.Source != "" {
		logger.Debug("configuration loaded", logger.Args("file", cfg.Source))
	}

	cache, err := dry_run_cache.NewCacheManager(cfg.CacheDir, dry_run_cache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	backups, err := backup_manager.NewManager(cfg.BackupDir, backup_manager.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &RootDependencies{
		ProjectPath:     projectPath,
		Config:          cfg,
		Logger:          logger,
		Analyzer:        code_analyzer.NewCodeAnalyzer(code_analyzer.WithAnalyzerLogger(logger)),
		Cache:           cache,
		Backups:         backups,
		TokenManagement: token_management.NewTokenManager(),
	}, nil
}

// buildGateway wires the primary and fallback providers behind the retry policy.
func buildGateway(deps *RootDependencies, primaryName, fallbackName string) (*providers.Gateway, error) {
	primary, err := providers.BuildProvider(primaryName, deps.Config.ProviderConfig(primaryName), deps.TokenManagement)
	if err != nil {
		return nil, err
	}

	var fallback provider_contracts.IDocProvider
	if fallbackName != "" && fallbackName != primaryName {
		fallback, err = providers.BuildProvider(fallbackName, deps.Config.ProviderConfig(fallbackName), deps.TokenManagement)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}

	policy := deps.Config.RetryPolicy()
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		deps.Logger.Warn("retrying provider call", deps.Logger.Args("attempt", attempt, "delay", delay.String(), "error", err.Error()))
	}

	return providers.NewGateway(providers.GatewayConfig{
		Primary:           primary,
		Fallback:          fallback,
		Policy:            policy,
		RequestsPerMinute: deps.Config.RequestsPerMinute,
		Logger:            deps.Logger,
	}), nil
}

// warnUncommitted tells the user which Go files have changes git does not hold yet.
func warnUncommitted(projectPath string) {
	git := utils.NewGitOperations(projectPath)
	if err := git.CheckGitRepo(); err != nil {
		return
	}
	files, err := git.UncommittedGoFiles()
	if err != nil || len(files) == 0 {
		return
	}
	fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("⚠ %d Go file(s) have uncommitted changes; docai keeps a backup, but committing first is safer.", len(files))))
}

func newSpinner() *pterm.SpinnerPrinter {
	return pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
}
