package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
	"github.com/quantops/pipedash/internal/registry"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the job templates in the catalog",
	Long: `Show every job template with its availability. A job is listed as
disabled when its script or declared resource files are missing on disk.`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
	jobsCmd.Flags().Bool("params", false, "Also list each job's parameters")
}

func runJobs(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	showParams, _ := cmd.Flags().GetBool("params")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.Jobs)
	defs := reg.ListDefinitions()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tGROUP\tSCHEDULE\tAVAILABLE")
	for _, def := range defs {
		available := "yes"
		if !def.Enabled {
			available = "no (missing: " + strings.Join(def.Missing, ", ") + ")"
		}
		schedule := def.Schedule
		if schedule == "" {
			schedule = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", def.ID, def.Label, def.Group, schedule, available)
	}
	w.Flush()

	if !showParams {
		return nil
	}

	for _, def := range defs {
		if len(def.Params) == 0 {
			continue
		}
		fmt.Printf("\n%s parameters:\n", def.ID)
		pw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(pw, "  NAME\tTYPE\tDEFAULT\tCHOICES")
		for _, p := range def.Params {
			choices := strings.Join(p.Choices, ",")
			if choices == "" {
				choices = "-"
			}
			defaultVal := fmt.Sprintf("%v", p.Default)
			if p.Default == nil {
				defaultVal = "-"
			}
			fmt.Fprintf(pw, "  %s\t%s\t%s\t%s\n", p.Name, p.Type, defaultVal, choices)
		}
		pw.Flush()
	}
	return nil
}
