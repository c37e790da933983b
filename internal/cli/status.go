package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shadehq/shade/internal/config"
	"github.com/shadehq/shade/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Shade Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Shade Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (using defaults)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config load error: %v\n", err)
			return
		}
		if cfg.Anthropic.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found (set ANTHROPIC_API_KEY)")
		}
		fmt.Printf("Data:    %s\n", cfg.Paths.DataDir)
		fmt.Printf("Poll:    message %s, ipc %s, task %s\n",
			cfg.Poll.Message, cfg.Poll.IPC, cfg.Poll.Task)
		fmt.Printf("Limits:  %d concurrent runs, %d retries (base %s)\n",
			cfg.Concurrency.MaxGlobal, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)

		s, err := store.Open(cfg.Paths.DatabasePath())
		if err != nil {
			fmt.Printf("Store:   ✗ %v\n", err)
			return
		}
		defer s.Close()

		for _, table := range []string{"channels", "groups", "messages", "agent_sessions", "scheduled_tasks"} {
			n, err := s.CountRows(table)
			if err != nil {
				fmt.Printf("%-16s ?\n", table+":")
				continue
			}
			fmt.Printf("%-16s %d\n", table+":", n)
		}
		fmt.Println("Status:  Ready")
	},
}
