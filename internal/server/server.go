// Package server exposes the dashboard HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantops/pipedash/internal/analytics"
	"github.com/quantops/pipedash/internal/logarchive"
	"github.com/quantops/pipedash/internal/registry"
	"github.com/quantops/pipedash/internal/supervisor"
)

// Registry is the job-template surface the server needs.
type Registry interface {
	ListDefinitions() []registry.DefinitionStatus
	Render(jobID string, raw map[string]any) (registry.ExecutionPlan, error)
}

// Supervisor is the process-control surface the server needs.
type Supervisor interface {
	Start(plan registry.ExecutionPlan) (supervisor.StartResult, error)
	Kill(logFile string) error
	ListActive() []supervisor.ActiveJob
}

// Archive is the log-archive surface the server needs.
type Archive interface {
	ListBuilds() ([]logarchive.BuildInfo, error)
	ListLogs() ([]string, error)
	ReadLog(name string) ([]byte, error)
	MTime(name string) (time.Time, error)
}

// RunStore is the artifact surface the analytics endpoints read from.
type RunStore interface {
	ListRuns() []string
	Equity(runID string) []map[string]string
	Trades(runID string) []map[string]string
	Weights(runID string) []analytics.WeightSample
	Summary(runID string) map[string]any
	ArtifactMTime(runID string) time.Time
}

// DerivedCache caches expensive mined views. May be nil.
type DerivedCache interface {
	Get(key string, v any) bool
	Put(key string, v any) error
}

// Server represents the HTTP server for the pipeline dashboard.
type Server struct {
	addr        string
	registry    Registry
	supervisor  Supervisor
	archive     Archive
	runs        RunStore
	cache       DerivedCache
	metricsPath string
	logger      *slog.Logger

	srv       *http.Server
	router    *http.ServeMux
	startTime time.Time

	mu      sync.RWMutex
	started bool
}

// New creates a new Server instance.
func New(addr string, reg Registry, sup Supervisor, arch Archive, runs RunStore, cache DerivedCache, metricsPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:        addr,
		registry:    reg,
		supervisor:  sup,
		archive:     arch,
		runs:        runs,
		cache:       cache,
		metricsPath: metricsPath,
		logger:      logger,
		startTime:   time.Now(),
		router:      http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	s.router.HandleFunc("GET /builds", s.handleListBuilds)
	s.router.HandleFunc("POST /builds/start", s.handleStartBuild)
	s.router.HandleFunc("POST /builds/kill", s.handleKillBuild)
	s.router.HandleFunc("GET /logs", s.handleLogs)

	s.router.HandleFunc("GET /api/autotune", s.handleAutotune)
	s.router.HandleFunc("GET /api/runs", s.handleListRuns)
	s.router.HandleFunc("GET /api/runs/{id}/roundtrips", s.handleRoundTrips)
	s.router.HandleFunc("GET /api/runs/{id}/window", s.handleWindow)
	s.router.HandleFunc("GET /api/runs/{id}/regimes", s.handleRegimes)
	s.router.HandleFunc("GET /api/metrics", s.handleMetrics)
}

// Handler returns the routed handler with middleware, for tests.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.router)
}

// Start starts the HTTP server with graceful shutdown support.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.mu.Unlock()

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server", "reason", ctx.Err())
		return s.Stop(context.Background())
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		return fmt.Errorf("shutdown failed: %w", err)
	}

	s.started = false
	s.logger.Info("HTTP server stopped")
	return nil
}

// loggingMiddleware logs HTTP requests with a correlation id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Uptime returns the server uptime as a string.
func (s *Server) Uptime() string {
	duration := time.Since(s.startTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		s.logger.Error("API error", "status", status, "message", message, "error", err)
	}

	s.writeJSON(w, status, response)
}
