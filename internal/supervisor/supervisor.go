// Package supervisor spawns external pipeline jobs, captures their output
// into append-only log files, and tracks the set of currently active jobs.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quantops/pipedash/internal/registry"
)

// ErrSpawn indicates the external process could not be started.
var ErrSpawn = errors.New("spawn failed")

// ErrNotActive indicates a kill was requested for a job that is not in
// the active set (never started here, or already exited).
var ErrNotActive = errors.New("job not active")

// stampLayout is the UTC timestamp embedded in log file names.
const stampLayout = "20060102_150405"

// markerLayout prefixes marker lines so temporal extraction picks them up.
const markerLayout = "2006-01-02 15:04:05"

// ActiveJob is the public snapshot of one in-flight job invocation.
type ActiveJob struct {
	LogFile     string         `json:"logfile"`
	JobID       string         `json:"job_id"`
	PID         int            `json:"pid"`
	StartedAt   time.Time      `json:"started_at"`
	Command     string         `json:"command"`
	Params      map[string]any `json:"params"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
}

// StartResult identifies a freshly started job.
type StartResult struct {
	LogFile string
	PID     int
}

type activeEntry struct {
	meta ActiveJob
	proc Process

	// wmu serializes marker writes against the sink close in reap.
	wmu    sync.Mutex
	sink   *os.File
	closed bool
}

func (e *activeEntry) writeMarker(t time.Time, format string, args ...any) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.closed {
		return errors.New("log sink closed")
	}
	_, err := fmt.Fprintf(e.sink, "%s %s\n", t.UTC().Format(markerLayout), fmt.Sprintf(format, args...))
	return err
}

func (e *activeEntry) closeWithExit(t time.Time, code int) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.closed {
		return
	}
	fmt.Fprintf(e.sink, "%s EXIT code=%d\n", t.UTC().Format(markerLayout), code)
	e.sink.Close()
	e.closed = true
}

// Supervisor owns the active-job registry. State is only mutated by Start
// (insert) and the exit handler (remove); each key is unique per start, so
// no two operations race on the same key.
type Supervisor struct {
	logsDir   string
	spawner   Spawner
	logger    *slog.Logger
	killGrace time.Duration
	now       func() time.Time

	mu     sync.Mutex
	active map[string]*activeEntry
}

// New creates a Supervisor writing logs under logsDir.
func New(logsDir string, spawner Spawner, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logsDir:   logsDir,
		spawner:   spawner,
		logger:    logger,
		killGrace: 5 * time.Second,
		now:       time.Now,
		active:    make(map[string]*activeEntry),
	}
}

// Start spawns a rendered plan. It allocates the log identity
// (<stamp>.<job_id>.log), writes the START marker, wires the process
// output to the log sink, and registers the job as active. The log sink
// is always closed with an EXIT marker, even on spawn failure.
func (s *Supervisor) Start(plan registry.ExecutionPlan) (StartResult, error) {
	if err := os.MkdirAll(s.logsDir, 0o755); err != nil {
		return StartResult{}, fmt.Errorf("%w: create logs dir: %v", ErrSpawn, err)
	}

	startedAt := s.now()
	logFile := s.allocateLogFile(startedAt, plan.JobID)

	sink, err := os.OpenFile(filepath.Join(s.logsDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: open log sink: %v", ErrSpawn, err)
	}

	entry := &activeEntry{sink: sink}
	entry.writeMarker(startedAt, "START job=%s cmd=%s", plan.JobID, plan.Command())

	proc, err := s.spawner.Spawn(plan, sink)
	if err != nil {
		entry.closeWithExit(s.now(), -1)
		s.logger.Error("failed to spawn job",
			"job_id", plan.JobID,
			"logfile", logFile,
			"error", err)
		return StartResult{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	entry.meta = ActiveJob{
		LogFile:   logFile,
		JobID:     plan.JobID,
		PID:       proc.PID(),
		StartedAt: startedAt,
		Command:   plan.Command(),
		Params:    plan.PublicParams,
	}
	entry.proc = proc

	s.mu.Lock()
	s.active[logFile] = entry
	s.mu.Unlock()

	s.logger.Info("job started",
		"job_id", plan.JobID,
		"logfile", logFile,
		"pid", entry.meta.PID)

	go s.reap(logFile, entry)

	return StartResult{LogFile: logFile, PID: entry.meta.PID}, nil
}

// reap waits for process exit, records the EXIT marker, closes the sink,
// and removes the job from the active set. This is the only durable record
// of exit status, and it is free text: status inference re-derives the
// outcome from the log later.
func (s *Supervisor) reap(logFile string, entry *activeEntry) {
	code := entry.proc.Wait()
	entry.closeWithExit(s.now(), code)

	s.mu.Lock()
	delete(s.active, logFile)
	s.mu.Unlock()

	s.logger.Info("job exited",
		"job_id", entry.meta.JobID,
		"logfile", logFile,
		"exit_code", code)
}

// Kill requests best-effort cancellation of an active job. It returns once
// termination has been requested, not once the process has exited; the
// exit marker and active-set removal happen later in the exit handler.
func (s *Supervisor) Kill(logFile string) error {
	s.mu.Lock()
	entry, ok := s.active[logFile]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotActive, logFile)
	}
	cancelledAt := s.now()
	entry.meta.CancelledAt = &cancelledAt
	s.mu.Unlock()

	// Best-effort marker; a failed append must not abort the kill.
	if err := entry.writeMarker(cancelledAt, "CANCEL requested pid=%d", entry.meta.PID); err != nil {
		s.logger.Warn("failed to append cancel marker", "logfile", logFile, "error", err)
	}

	if err := entry.proc.Terminate(); err != nil {
		s.logger.Warn("graceful termination failed, killing",
			"logfile", logFile, "error", err)
		entry.proc.Kill()
		return nil
	}

	// Escalate if the graceful signal did not take effect.
	go func() {
		time.Sleep(s.killGrace)
		if _, still := s.Active(logFile); still {
			s.logger.Warn("escalating to forceful kill", "logfile", logFile)
			entry.proc.Kill()
		}
	}()

	s.logger.Info("cancellation requested",
		"job_id", entry.meta.JobID,
		"logfile", logFile)
	return nil
}

// Active returns the snapshot for one active job, if present.
func (s *Supervisor) Active(logFile string) (ActiveJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.active[logFile]
	if !ok {
		return ActiveJob{}, false
	}
	return entry.meta, true
}

// ListActive returns snapshots of all active jobs, newest first.
func (s *Supervisor) ListActive() []ActiveJob {
	s.mu.Lock()
	jobs := make([]ActiveJob, 0, len(s.active))
	for _, entry := range s.active {
		jobs = append(jobs, entry.meta)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// allocateLogFile derives the unique log identity from the start timestamp
// and job id, probing forward one second at a time if a same-second start
// of the same job already claimed the name.
func (s *Supervisor) allocateLogFile(t time.Time, jobID string) string {
	for {
		name := fmt.Sprintf("%s.%s.log", t.UTC().Format(stampLayout), jobID)
		if _, err := os.Stat(filepath.Join(s.logsDir, name)); os.IsNotExist(err) {
			return name
		}
		t = t.Add(time.Second)
	}
}

// SetKillGrace overrides the SIGTERM-to-SIGKILL escalation delay.
func (s *Supervisor) SetKillGrace(d time.Duration) { s.killGrace = d }

// SetNow overrides the clock. Used by tests.
func (s *Supervisor) SetNow(now func() time.Time) { s.now = now }
