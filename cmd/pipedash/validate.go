package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("configuration is valid: %d jobs\n", len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		line := fmt.Sprintf("  %s (%s)", job.ID, job.Label)
		if job.Schedule != "" {
			line += " schedule=" + job.Schedule
		}
		fmt.Println(line)
	}
	return nil
}
