package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// validParamTypes lists the parameter types the registry knows how to coerce.
var validParamTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"choice": true,
	"path":   true,
}

// LoadConfig loads and validates a pipedash configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Paths.LogsDir == "" {
		cfg.Paths.LogsDir = "./logs"
	}
	if cfg.Paths.RunsDir == "" {
		cfg.Paths.RunsDir = "./runs"
	}
	if cfg.Paths.CacheFile == "" {
		cfg.Paths.CacheFile = "./.pipedash-cache.db"
	}
	if cfg.Status.FreshnessSec == 0 {
		cfg.Status.FreshnessSec = 180
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.Workdir == "" {
			job.Workdir = "."
		}
		if job.Env == nil {
			job.Env = make(map[string]string)
		}
		if job.Label == "" {
			job.Label = job.ID
		}
		for j := range job.Params {
			if job.Params[j].Type == "" {
				job.Params[j].Type = "string"
			}
		}
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("no jobs defined in configuration")
	}

	jobIDs := make(map[string]bool)
	for i, job := range cfg.Jobs {
		if job.ID == "" {
			return fmt.Errorf("job at index %d is missing an ID", i)
		}
		if job.Script == "" {
			return fmt.Errorf("job %s is missing a script", job.ID)
		}
		if jobIDs[job.ID] {
			return fmt.Errorf("duplicate job ID: %s", job.ID)
		}
		jobIDs[job.ID] = true

		if job.Schedule != "" {
			if err := ValidateSchedule(job.Schedule); err != nil {
				return fmt.Errorf("job %s has invalid schedule: %w", job.ID, err)
			}
		}

		paramNames := make(map[string]bool)
		for _, p := range job.Params {
			if p.Name == "" {
				return fmt.Errorf("job %s has a parameter with no name", job.ID)
			}
			if paramNames[p.Name] {
				return fmt.Errorf("job %s has duplicate parameter %s", job.ID, p.Name)
			}
			paramNames[p.Name] = true
			if !validParamTypes[p.Type] {
				return fmt.Errorf("job %s parameter %s has unknown type %q", job.ID, p.Name, p.Type)
			}
			if p.Type == "choice" && len(p.Choices) == 0 {
				return fmt.Errorf("job %s parameter %s is a choice with no choices", job.ID, p.Name)
			}
			if p.Required && p.Type != "path" {
				return fmt.Errorf("job %s parameter %s: required is only meaningful for path params", job.ID, p.Name)
			}
		}
	}

	if cfg.Status.FreshnessSec < 0 {
		return fmt.Errorf("status.freshness_sec must be non-negative")
	}

	return nil
}

// ValidateSchedule checks if a schedule expression is plausibly valid.
// Supports cron expressions, @-prefixed shortcuts, and "every N <unit>" intervals.
// The scheduler does the authoritative parse at startup; this catches obvious
// mistakes at config load time.
func ValidateSchedule(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(schedule), "every ") {
		interval := strings.TrimSpace(schedule[len("every "):])
		if matched, _ := regexp.MatchString(`^\d+\s*[a-z]+$`, strings.ToLower(interval)); matched {
			return nil
		}
		return fmt.Errorf("invalid interval: %s (must be like 'every 5m', 'every 1 hour')", schedule)
	}

	if strings.HasPrefix(schedule, "@") {
		shortcuts := []string{"@annually", "@yearly", "@monthly", "@weekly", "@daily", "@hourly"}
		for _, shortcut := range shortcuts {
			if schedule == shortcut {
				return nil
			}
		}
		if strings.HasPrefix(schedule, "@every ") {
			interval := strings.TrimPrefix(schedule, "@every ")
			if matched, _ := regexp.MatchString(`^\d+[smh]$`, interval); matched {
				return nil
			}
			return fmt.Errorf("invalid @every interval: %s (must be like '5m', '1h', '30s')", interval)
		}
		return fmt.Errorf("unknown schedule shortcut: %s", schedule)
	}

	fields := strings.Fields(schedule)
	if len(fields) < 5 || len(fields) > 6 {
		return fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
	}

	return nil
}
