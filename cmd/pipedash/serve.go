package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantops/pipedash/internal/analytics"
	"github.com/quantops/pipedash/internal/cache"
	"github.com/quantops/pipedash/internal/config"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/logging"
	"github.com/quantops/pipedash/internal/registry"
	"github.com/quantops/pipedash/internal/scheduler"
	"github.com/quantops/pipedash/internal/server"
	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Long: `Start the pipedash HTTP server: job launch/kill endpoints, build
listings with inferred statuses, log access, and the analytics API over
run artifacts. Jobs with a schedule in the catalog fire automatically.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addrOverride, _ := cmd.Flags().GetString("addr")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
	if err != nil {
		return err
	}
	logger = log

	addr := cfg.Server.Addr
	if addrOverride != "" {
		addr = addrOverride
	}

	reg := registry.New(cfg.Jobs)
	sup := supervisor.New(cfg.Paths.LogsDir, supervisor.ExecSpawner{}, logger)
	strategy := status.Heuristic{Freshness: time.Duration(cfg.Status.FreshnessSec) * time.Second}
	arch := logarchive.New(cfg.Paths.LogsDir, strategy, sup, logger)
	runs := analytics.NewRunStore(cfg.Paths.RunsDir, logger)

	// The derived-view cache is an optimization; a broken cache file
	// degrades to recomputation, it does not stop the server.
	var derived server.DerivedCache
	if c, err := cache.Open(cfg.Paths.CacheFile); err != nil {
		logger.Warn("derived cache unavailable, views will be recomputed per request",
			"path", cfg.Paths.CacheFile, "error", err)
	} else {
		derived = c
		defer c.Close()
	}

	ctx := setupSignalHandler()

	sched := scheduler.New(ctx, logger)
	for i := range cfg.Jobs {
		job := cfg.Jobs[i]
		if job.Schedule == "" {
			continue
		}
		err := sched.Add(job.ID, job.Schedule, func() {
			plan, err := reg.Render(job.ID, nil)
			if err != nil {
				logger.Error("scheduled start not rendered", "job_id", job.ID, "error", err)
				return
			}
			if _, err := sup.Start(plan); err != nil {
				logger.Error("scheduled start failed", "job_id", job.ID, "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	srv := server.New(addr, reg, sup, arch, runs, derived, cfg.Paths.MetricsPath, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Start()
		<-gCtx.Done()
		sched.Stop()
		return nil
	})

	g.Go(func() error {
		return srv.Start(gCtx)
	})

	logger.Info("pipedash started",
		"addr", addr,
		"jobs", len(cfg.Jobs),
		"logs_dir", cfg.Paths.LogsDir,
		"runs_dir", cfg.Paths.RunsDir,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("pipedash stopped")
	return nil
}
