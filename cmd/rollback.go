package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/meysamhadeli/docai/backup_manager"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <backup-path> [project]",
	Short: "Restore project files from a backup",
	Long: `The 'rollback' command copies every file of a backup taken by 'docai generate' back into the
project. The project defaults to the one recorded in the backup. With --list the backups of
the project (default: the current directory) are listed, newest first.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		autoConfirm, _ := cmd.Flags().GetBool("yes")

		if list {
			projectPath, err := projectArg(args, 0)
			if err != nil {
				return err
			}
			rootDependencies, err := handleRootCommand(cmd, projectPath)
			if err != nil {
				return err
			}
			return handleListBackups(rootDependencies)
		}

		if len(args) == 0 {
			return errors.New("a backup path is required (see 'docai rollback --list')")
		}
		return handleRollbackCommand(cmd, args, autoConfirm)
	},
}

func init() {
	rollbackCmd.Flags().BoolP("list", "l", false, "List the backups of the project instead of restoring one.")
	rollbackCmd.Flags().BoolP("yes", "y", false, "Restore without asking.")

	rootCmd.AddCommand(rollbackCmd)
}

func handleListBackups(rootDependencies *RootDependencies) error {
	snapshots, err := rootDependencies.Backups.ListBackups(rootDependencies.ProjectPath)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Println(lipgloss.Yellow.Render("No backups for this project."))
		return nil
	}

	data := pterm.TableData{{"Created", "Files", "Path"}}
	for _, snapshot := range snapshots {
		data = append(data, []string{
			snapshot.CreatedAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(len(snapshot.Files)),
			snapshot.Path,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func handleRollbackCommand(cmd *cobra.Command, args []string, autoConfirm bool) error {
	backupPath, err := projectArg(args, 0)
	if err != nil {
		return err
	}

	// The configuration is looked up in the current directory until the project is known.
	cwd, err := projectArg(nil, 0)
	if err != nil {
		return err
	}
	rootDependencies, err := handleRootCommand(cmd, cwd)
	if err != nil {
		return err
	}

	snapshot, err := rootDependencies.Backups.ReadSnapshot(backupPath)
	if err != nil {
		return err
	}

	projectPath, err := rollbackTarget(snapshot, args, cwd)
	if err != nil {
		return err
	}

	confirmer := utils.NewConfirmer(autoConfirm, os.Stdin, os.Stdout)
	confirmed, err := confirmer.ConfirmRollback(len(snapshot.Files), snapshot.Path)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println(lipgloss.Yellow.Render("Rollback cancelled."))
		return nil
	}

	spinnerInstance, _ := newSpinner().Start("Restoring files...")
	restored, err := rootDependencies.Backups.RestoreBackup(snapshot.Path, projectPath)
	if spinnerInstance != nil {
		_ = spinnerInstance.Stop()
	}

	fmt.Println(lipgloss.BoxStyle.Render(fmt.Sprintf("Restored %d of %d file(s) into %s", restored, len(snapshot.Files), projectPath)))
	if err != nil {
		return fmt.Errorf("some files could not be restored: %w", err)
	}
	fmt.Println(lipgloss.Green.Render("✓ Rollback completed."))
	return nil
}

// rollbackTarget picks the project a snapshot is restored into: the explicit
// argument, the project recorded in the manifest, or the current directory when
// the snapshot lives under its backup folder.
func rollbackTarget(snapshot *backup_manager.Snapshot, args []string, cwd string) (string, error) {
	if len(args) > 1 {
		return projectArg(args, 1)
	}
	if snapshot.ProjectPath != "" {
		return snapshot.ProjectPath, nil
	}
	if filepath.Base(filepath.Dir(snapshot.Path)) == utils.ProjectHash(cwd) {
		return cwd, nil
	}
	return "", fmt.Errorf("backup %s has no manifest: pass the project path as the second argument", snapshot.Path)
}
