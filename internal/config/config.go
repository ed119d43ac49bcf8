package config

// Config represents the top-level configuration structure for pipedash.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Paths   Paths   `yaml:"paths"`
	Status  Status  `yaml:"status"`
	Jobs    []Job   `yaml:"jobs"`
}

// Server holds HTTP server settings.
type Server struct {
	Addr string `yaml:"addr"` // host:port for the dashboard API
}

// Logging holds structured logging settings.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// Paths locates the on-disk artifacts the dashboard reads and writes.
type Paths struct {
	LogsDir     string `yaml:"logs_dir"`     // append-only job logs
	RunsDir     string `yaml:"runs_dir"`     // per-run artifact directories
	MetricsPath string `yaml:"metrics_path"` // walk-forward metrics JSONL
	CacheFile   string `yaml:"cache_file"`   // bbolt cache for mined views
}

// Status tunes the log-based status heuristics.
type Status struct {
	FreshnessSec int `yaml:"freshness_sec"` // mtime window treated as "still running"
}

// Job is a parameterized template for one external pipeline step.
type Job struct {
	ID          string            `yaml:"id"`          // unique job identifier
	Label       string            `yaml:"label"`       // human-readable name
	Group       string            `yaml:"group"`       // category tag (training, sweeps, ...)
	Interpreter string            `yaml:"interpreter"` // e.g. python3; empty runs the script directly
	Script      string            `yaml:"script"`      // path to the pipeline script
	Workdir     string            `yaml:"workdir"`     // working directory for the process
	Env         map[string]string `yaml:"env"`         // environment overlay
	Requires    []string          `yaml:"requires"`    // extra resources that must exist
	Schedule    string            `yaml:"schedule"`    // optional cron expression or interval
	Params      []Param           `yaml:"params"`      // declared parameter schema
}

// Param declares one job parameter: how it is coerced and rendered.
type Param struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // string, int, float, choice, path
	Flag     string   `yaml:"flag"` // CLI flag the value is rendered under
	Default  any      `yaml:"default"`
	Choices  []string `yaml:"choices"`  // enumerated values for choice params
	Min      *float64 `yaml:"min"`      // floor applied to numeric values
	Required bool     `yaml:"required"` // required path params fail instead of defaulting
	Secret   bool     `yaml:"secret"`   // excluded from public parameter projection
}
