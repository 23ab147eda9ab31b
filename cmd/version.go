package cmd

import (
	"fmt"
	"runtime"

	"github.com/meysamhadeli/docai/config"
	"github.com/meysamhadeli/docai/constants/lipgloss"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of docai",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(lipgloss.BoxStyle.Render(fmt.Sprintf("docai %s (%s %s/%s)", config.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
