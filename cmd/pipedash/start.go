package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/logging"
	"github.com/quantops/pipedash/internal/registry"
	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/supervisor"
)

var startCmd = &cobra.Command{
	Use:   "start <job-id>",
	Short: "Start one job and wait for it to finish",
	Long: `Render a job template with the given parameters, spawn it, stream
output to a fresh archive log, and wait for the process to exit. Ctrl-C
requests cancellation of the running job before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
	startCmd.Flags().StringArrayP("param", "p", nil, "Job parameter as name=value (repeatable)")
}

func runStart(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	rawParams, _ := cmd.Flags().GetStringArray("param")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
	if err != nil {
		return err
	}
	logger = log

	params := make(map[string]any, len(rawParams))
	for _, raw := range rawParams {
		name, value, found := strings.Cut(raw, "=")
		if !found || name == "" {
			return fmt.Errorf("invalid --param %q, expected name=value", raw)
		}
		params[name] = value
	}

	reg := registry.New(cfg.Jobs)
	plan, err := reg.Render(jobID, params)
	if err != nil {
		return err
	}

	sup := supervisor.New(cfg.Paths.LogsDir, supervisor.ExecSpawner{}, logger)
	result, err := sup.Start(plan)
	if err != nil {
		return err
	}

	fmt.Printf("started %s\n", jobID)
	fmt.Printf("  logfile: %s\n", result.LogFile)
	fmt.Printf("  pid:     %d\n", result.PID)

	ctx := setupSignalHandler()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil // only request cancellation once
			logger.Info("cancelling job", "logfile", result.LogFile)
			if err := sup.Kill(result.LogFile); err != nil {
				logger.Warn("cancel failed", "logfile", result.LogFile, "error", err)
			}
		case <-ticker.C:
		}

		if _, active := sup.Active(result.LogFile); !active {
			break
		}
	}

	strategy := status.Heuristic{Freshness: time.Duration(cfg.Status.FreshnessSec) * time.Second}
	arch := logarchive.New(cfg.Paths.LogsDir, strategy, sup, logger)
	content, err := arch.ReadLog(result.LogFile)
	if err != nil {
		return err
	}

	final := strategy.Infer(content, time.Now(), false)
	fmt.Printf("finished %s: %s\n", jobID, final)
	if final == status.Failed {
		return fmt.Errorf("job %s failed, see %s", jobID, result.LogFile)
	}
	return nil
}
