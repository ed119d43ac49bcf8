package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/quantops/pipedash/internal/analytics"
	"github.com/quantops/pipedash/internal/cache"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/registry"
	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/supervisor"
)

const version = "v0.1.0"

// handleHealth returns the health status of the server.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  s.Uptime(),
	})
}

// handleListBuilds returns every build (active and historical), the job
// catalog with availability, a status overview, and the live active set.
func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := s.archive.ListBuilds()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list builds", err)
		return
	}

	overview := Overview{Total: len(builds)}
	for _, b := range builds {
		switch b.Status {
		case status.Running:
			overview.Running++
		case status.Failed:
			overview.Failed++
		default:
			overview.Success++
		}
	}

	s.writeJSON(w, http.StatusOK, BuildsResponse{
		Builds:      builds,
		Definitions: s.registry.ListDefinitions(),
		Overview:    overview,
		Active:      s.supervisor.ListActive(),
	})
}

// handleStartBuild renders a job template and spawns it.
func (s *Server) handleStartBuild(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.JobID == "" {
		s.writeError(w, http.StatusBadRequest, "job_id is required", nil)
		return
	}

	plan, err := s.registry.Render(req.JobID, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownJob),
			errors.Is(err, registry.ErrJobDisabled),
			errors.Is(err, registry.ErrInvalidParameter):
			s.writeError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			s.writeError(w, http.StatusInternalServerError, "failed to render job", err)
		}
		return
	}

	result, err := s.supervisor.Start(plan)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to start job", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, StartResponse{
		OK: true,
		Build: StartedBuild{
			JobID:   req.JobID,
			Logfile: result.LogFile,
			PID:     result.PID,
		},
	})
}

// handleKillBuild requests best-effort cancellation of an active job.
func (s *Server) handleKillBuild(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Logfile == "" {
		s.writeError(w, http.StatusBadRequest, "logfile is required", nil)
		return
	}

	if err := s.supervisor.Kill(req.Logfile); err != nil {
		if errors.Is(err, supervisor.ErrNotActive) {
			s.writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to kill job", err)
		return
	}

	s.writeJSON(w, http.StatusOK, KillResponse{OK: true, Logfile: req.Logfile})
}

// handleLogs serves one raw log, or the file listing when no file is given.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		files, err := s.archive.ListLogs()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to list logs", err)
			return
		}
		s.writeJSON(w, http.StatusOK, FilesResponse{Files: files})
		return
	}

	content, err := s.archive.ReadLog(name)
	if err != nil {
		if errors.Is(err, logarchive.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "log not found", nil)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read log", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(content)
}

// handleAutotune mines one sweep log into trial records.
func (s *Server) handleAutotune(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "file is required", nil)
		return
	}

	mtime, err := s.archive.MTime(name)
	if err != nil {
		if errors.Is(err, logarchive.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "log not found", nil)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to stat log", err)
		return
	}

	key := cache.Key("autotune", name, mtime)
	var report logarchive.AutotuneReport
	if s.cache != nil && s.cache.Get(key, &report) {
		s.writeJSON(w, http.StatusOK, report)
		return
	}

	content, err := s.archive.ReadLog(name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read log", err)
		return
	}

	report = logarchive.MineAutotune(content)
	if s.cache != nil {
		if err := s.cache.Put(key, report); err != nil {
			s.logger.Warn("failed to cache autotune report", "file", name, "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleListRuns lists the run artifact directories.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, RunsResponse{Runs: s.runs.ListRuns()})
}

// handleRoundTrips serves hold-duration-augmented trades for one run.
// An absent or unparsable artifact yields ok:false with empty trades.
func (s *Server) handleRoundTrips(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	rows := s.runs.Trades(runID)
	s.writeJSON(w, http.StatusOK, RoundTripsResponse{
		OK:     len(rows) > 0,
		Trades: analytics.RoundTrips(rows),
	})
}

// handleWindow filters the run's equity and trade series to a time window
// around the requested center.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	center := r.URL.Query().Get("center")

	halfWidth := 0.0
	if hw := r.URL.Query().Get("half_width"); hw != "" {
		if f, err := strconv.ParseFloat(hw, 64); err == nil {
			halfWidth = f
		}
	}

	result, err := analytics.Window(center, halfWidth, s.runs.Equity(runID), s.runs.Trades(runID))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleRegimes serves the regime attribution for one run.
func (s *Server) handleRegimes(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	key := cache.Key("regimes", runID, s.runs.ArtifactMTime(runID))
	var attribution analytics.Attribution
	if s.cache != nil && s.cache.Get(key, &attribution) {
		s.writeJSON(w, http.StatusOK, attribution)
		return
	}

	attribution = analytics.Attribute(
		s.runs.Weights(runID),
		s.runs.Equity(runID),
		s.runs.Summary(runID),
	)
	if s.cache != nil {
		if err := s.cache.Put(key, attribution); err != nil {
			s.logger.Warn("failed to cache attribution", "run_id", runID, "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, attribution)
}

// handleMetrics serves the walk-forward training metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	sinceDay := analytics.NormalizeDay(r.URL.Query().Get("since_day"))
	aggregate := r.URL.Query().Get("aggregate") != "false"

	rows := analytics.ReadMetrics(s.metricsPath, limit, sinceDay)

	resp := MetricsResponse{
		Summary:    analytics.Summarize(rows),
		BestPerDay: []analytics.MetricRow{},
		Rows:       rows,
	}
	if aggregate {
		resp.BestPerDay = analytics.BestPerDay(rows)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
