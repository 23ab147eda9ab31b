package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/utils"
	"github.com/spf13/cobra"
)

// resetCacheCmd represents the reset-cache command
var resetCacheCmd = &cobra.Command{
	Use:   "reset-cache [path]",
	Short: "Reset the dry-run cache of a project",
	Long: `The 'reset-cache' command removes the cached provider responses that dry runs of the project
at path have collected. The next dry run calls the provider again for every symbol.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		stats, _ := cmd.Flags().GetBool("stats")

		projectPath, err := projectArg(args, 0)
		if err != nil {
			return err
		}
		rootDependencies, err := handleRootCommand(cmd, projectPath)
		if err != nil {
			return err
		}
		return handleResetCacheCommand(rootDependencies, force, stats)
	},
}

func init() {
	resetCacheCmd.Flags().BoolP("force", "f", false, "Force cache reset without confirmation")
	resetCacheCmd.Flags().BoolP("stats", "s", false, "Show cache statistics instead of resetting")

	rootCmd.AddCommand(resetCacheCmd)
}

func handleResetCacheCommand(rootDependencies *RootDependencies, force bool, showStats bool) error {
	cache := rootDependencies.Cache
	stats := cache.Stats(rootDependencies.ProjectPath)

	if showStats {
		fmt.Println(lipgloss.Info.Render("Cache Statistics:"))
		fmt.Printf("  Cache File: %s\n", stats.Path)
		if !stats.Exists {
			fmt.Println("  No cache for this project")
			return nil
		}
		fmt.Printf("  Entries: %d (%d fresh, %d expired)\n", stats.Entries, stats.Fresh, stats.Expired)
		fmt.Printf("  Total Size: %.2f KB\n", float64(stats.SizeBytes)/1024)
		fmt.Printf("  Last Updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
		return nil
	}

	if !stats.Exists {
		fmt.Println(lipgloss.Yellow.Render("No cache to reset."))
		return nil
	}

	if !force {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		answer, err := utils.InputPromptWithContext(ctx, bufio.NewReader(os.Stdin), os.Stdout,
			fmt.Sprintf("Remove %d cached response(s) of this project? (y/N): ", stats.Entries))
		if err != nil {
			return err
		}
		if !utils.IsYes(answer) {
			fmt.Println(lipgloss.Yellow.Render("Cache reset cancelled."))
			return nil
		}
	}

	spinnerInstance, _ := newSpinner().Start("Resetting dry-run cache...")
	err := cache.ClearCache(rootDependencies.ProjectPath)
	if spinnerInstance != nil {
		_ = spinnerInstance.Stop()
	}
	if err != nil {
		return fmt.Errorf("error resetting cache: %w", err)
	}

	fmt.Println(lipgloss.Green.Render("✓ Dry-run cache has been successfully reset!"))
	return nil
}
