package server

import (
	"github.com/quantops/pipedash/internal/analytics"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/registry"
	"github.com/quantops/pipedash/internal/supervisor"
)

// BuildsResponse is the main dashboard payload.
type BuildsResponse struct {
	Builds      []logarchive.BuildInfo      `json:"builds"`
	Definitions []registry.DefinitionStatus `json:"definitions"`
	Overview    Overview                    `json:"overview"`
	Active      []supervisor.ActiveJob      `json:"active"`
}

// Overview counts builds by inferred status.
type Overview struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// StartRequest asks for a job template to be rendered and spawned.
type StartRequest struct {
	JobID  string         `json:"job_id"`
	Params map[string]any `json:"params"`
}

// StartResponse acknowledges a spawned job.
type StartResponse struct {
	OK    bool         `json:"ok"`
	Build StartedBuild `json:"build"`
}

// StartedBuild identifies the new invocation.
type StartedBuild struct {
	JobID   string `json:"job_id"`
	Logfile string `json:"logfile"`
	PID     int    `json:"pid"`
}

// KillRequest asks for best-effort cancellation of an active job.
type KillRequest struct {
	Logfile string `json:"logfile"`
}

// KillResponse acknowledges a cancellation request.
type KillResponse struct {
	OK      bool   `json:"ok"`
	Logfile string `json:"logfile"`
}

// FilesResponse lists archive log files.
type FilesResponse struct {
	Files []string `json:"files"`
}

// RunsResponse lists run identifiers under the runs directory.
type RunsResponse struct {
	Runs []string `json:"runs"`
}

// RoundTripsResponse carries derived round trips for one run.
type RoundTripsResponse struct {
	OK     bool                  `json:"ok"`
	Trades []analytics.RoundTrip `json:"trades"`
}

// MetricsResponse mirrors the walk-forward metrics endpoint shape.
type MetricsResponse struct {
	Summary    analytics.MetricsSummary `json:"summary"`
	BestPerDay []analytics.MetricRow    `json:"best_per_day"`
	Rows       []analytics.MetricRow    `json:"rows"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
