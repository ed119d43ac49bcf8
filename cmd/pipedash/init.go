package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a sample pipedash.yaml with one job template per pipeline
stage. Edit the scripts, parameters, and paths to match your deployment.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to write the configuration file")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
	}

	if err := config.SaveConfig(config.NewSampleConfig(), configPath); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", configPath)
	fmt.Println("next steps:")
	fmt.Println("  1. point the job scripts at your pipeline entrypoints")
	fmt.Println("  2. pipedash validate")
	fmt.Println("  3. pipedash serve")
	return nil
}
