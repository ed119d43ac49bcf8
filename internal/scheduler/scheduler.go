// Package scheduler fires recurring starts of job templates that declare
// a schedule, wrapping robfig/cron with context support.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers scheduled job template starts.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]cron.EntryID // jobID -> cron entry
	wg      sync.WaitGroup
}

// New creates a Scheduler. The context is used for graceful shutdown.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	schedCtx, cancel := context.WithCancel(ctx)
	cronLogger := &cronSlogAdapter{logger: logger}

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	return &Scheduler{
		cron:    c,
		ctx:     schedCtx,
		cancel:  cancel,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules fire() according to expr for the given job template.
// Returns an error for duplicate ids or unparsable expressions.
func (s *Scheduler) Add(jobID, expr string, fire func()) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if fire == nil {
		return fmt.Errorf("fire func cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[jobID]; exists {
		return fmt.Errorf("job %q already scheduled", jobID)
	}

	schedule, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for job %q: %w", jobID, err)
	}

	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		if s.ctx.Err() != nil {
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		s.logger.Info("scheduled start firing", slog.String("job_id", jobID))
		fire()
	}))
	s.entries[jobID] = entryID

	s.logger.Info("job schedule registered",
		slog.String("job_id", jobID),
		slog.String("schedule", expr),
		slog.Time("next_run", schedule.Next(time.Now())),
	)
	return nil
}

// NextRun reports the next fire time for a scheduled job.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryID, ok := s.entries[jobID]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if entry.ID == 0 {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.mu.RLock()
	count := len(s.entries)
	s.mu.RUnlock()

	s.logger.Info("starting scheduler", slog.Int("scheduled_jobs", count))
	s.cron.Start()
}

// Stop stops scheduling and waits for in-flight fire callbacks to return.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// cronSlogAdapter adapts slog.Logger to the cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+2)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
