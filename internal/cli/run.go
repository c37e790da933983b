package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shadehq/shade/internal/config"
	"github.com/shadehq/shade/internal/orchestrator"
	"github.com/shadehq/shade/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator until interrupted",
	Run:   runRun,
}

func runRun(cmd *cobra.Command, args []string) {
	printHeader("🕶️ Shade")
	fmt.Println("Starting Shade...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		fmt.Printf("Failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.Paths.DatabasePath())
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	o := orchestrator.New(cfg, s, orchestrator.Options{})
	if err := o.Start(context.Background()); err != nil {
		fmt.Printf("Failed to start orchestrator: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Shade is running (assistant %q, webhook listener on %s). Press Ctrl+C to stop.\n",
		cfg.AssistantName, cfg.HTTP.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	o.Stop()
}
