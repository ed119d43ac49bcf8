package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal dashboard",
	Long: `Browse the build archive in a terminal UI: build list with inferred
statuses, per-build detail, and a live log tail. Reads the same archive
the server does, so it works alongside a running server.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
}

func runTUI(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// No supervisor attached: jobs started by a separate server process
	// are still visible, their status inferred from log text and mtime.
	strategy := status.Heuristic{Freshness: time.Duration(cfg.Status.FreshnessSec) * time.Second}
	arch := logarchive.New(cfg.Paths.LogsDir, strategy, nil, logger)

	model := tui.New(arch, logger)
	program := tea.NewProgram(model)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
