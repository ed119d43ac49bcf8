package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes a Config to a YAML file.
// It performs an atomic write by writing to a temporary file first,
// then renaming it to the target path.
func SaveConfig(cfg *Config, path string) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// NewSampleConfig creates a starter Config with one job per pipeline stage,
// used by the init command to seed a deployment.
func NewSampleConfig() *Config {
	minOne := 1.0
	return &Config{
		Server:  Server{Addr: ":5000"},
		Logging: Logging{Level: "info", Format: "json", Output: "stderr"},
		Paths: Paths{
			LogsDir:     "./logs",
			RunsDir:     "./runs",
			MetricsPath: "./metrics.jsonl",
			CacheFile:   "./.pipedash-cache.db",
		},
		Status: Status{FreshnessSec: 180},
		Jobs: []Job{
			{
				ID:          "data-sweep",
				Label:       "Daily data sweep",
				Group:       "data",
				Interpreter: "python3",
				Script:      "scripts/data_sweep.py",
				Env:         map[string]string{"PYTHONUNBUFFERED": "1"},
				Params: []Param{
					{Name: "days", Type: "int", Flag: "--days", Default: 30, Min: &minOne},
				},
			},
			{
				ID:          "train-walkforward",
				Label:       "Walk-forward training",
				Group:       "training",
				Interpreter: "python3",
				Script:      "scripts/train_walkforward.py",
				Env:         map[string]string{"PYTHONUNBUFFERED": "1"},
				Params: []Param{
					{Name: "estimators", Type: "int", Flag: "--estimators", Default: 200, Min: &minOne},
					{Name: "out_path", Type: "path", Flag: "--out", Required: true},
				},
			},
			{
				ID:          "autotune",
				Label:       "Autotune parameter sweep",
				Group:       "sweeps",
				Interpreter: "python3",
				Script:      "scripts/autotune.py",
				Params: []Param{
					{Name: "thresholds", Type: "string", Flag: "--thresholds", Default: "0.5,0.55,0.6"},
					{Name: "lambdas", Type: "string", Flag: "--lambdas", Default: "0.05,0.1,0.2"},
				},
			},
		},
	}
}
