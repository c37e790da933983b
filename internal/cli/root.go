// Package cli implements the shade command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/shadehq/shade/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"      _               _\n" +
		"  ___| |__   __ _  __| | ___\n" +
		" / __| '_ \\ / _` |/ _` |/ _ \\\n" +
		" \\__ \\ | | | (_| | (_| |  __/\n" +
		" |___/_| |_|\\__,_|\\__,_|\\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "shade",
	Short: "Shade - group conversation agent orchestrator",
	Long:  color.CyanString(logo) + "\nRoutes group chat messages into per-group AI agent runs.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
}
