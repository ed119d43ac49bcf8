// Package logarchive enumerates and reads the persisted job logs, turning
// them into build summaries by re-applying status inference per request.
package logarchive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/supervisor"
)

// ErrNotFound indicates a requested log file does not exist in the archive.
var ErrNotFound = errors.New("log not found")

// BuildInfo is the derived, per-request description of one job invocation.
// It is never stored: every listing re-reads the log and re-runs inference.
type BuildInfo struct {
	LogFile     string         `json:"logfile"`
	JobID       string         `json:"job_id"`
	Status      status.Status  `json:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	DurationSec *float64       `json:"duration_sec,omitempty"`
	SizeBytes   int64          `json:"size_bytes"`
	ModifiedAt  time.Time      `json:"modified_at"`
	PID         int            `json:"pid,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
}

// ActiveLookup resolves a log identity against the supervisor's active set.
type ActiveLookup interface {
	Active(logFile string) (supervisor.ActiveJob, bool)
}

// Archive reads the log directory.
type Archive struct {
	dir      string
	strategy status.Strategy
	actives  ActiveLookup
	logger   *slog.Logger
}

// New creates an Archive over dir. actives may be nil when no supervisor
// is attached (offline inspection); all jobs then go through heuristics.
func New(dir string, strategy status.Strategy, actives ActiveLookup, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{dir: dir, strategy: strategy, actives: actives, logger: logger}
}

// ListBuilds enumerates every log file, applies status inference, joins
// with active-set metadata, and sorts by start time descending. Unset
// start times sort as earliest. A missing archive directory is an empty
// archive, not an error.
func (a *Archive) ListBuilds() ([]BuildInfo, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BuildInfo{}, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	builds := make([]BuildInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := a.describe(entry.Name())
		if err != nil {
			a.logger.Warn("skipping unreadable log", "logfile", entry.Name(), "error", err)
			continue
		}
		builds = append(builds, info)
	}

	sort.Slice(builds, func(i, j int) bool {
		ti, tj := startKey(builds[i]), startKey(builds[j])
		return ti.After(tj)
	})
	return builds, nil
}

func startKey(b BuildInfo) time.Time {
	if b.StartedAt != nil {
		return *b.StartedAt
	}
	return time.Time{}
}

// describe builds the BuildInfo for one log file.
func (a *Archive) describe(name string) (BuildInfo, error) {
	path := filepath.Join(a.dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return BuildInfo{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return BuildInfo{}, err
	}

	stamp, jobID := splitLogName(name)

	var live supervisor.ActiveJob
	isActive := false
	if a.actives != nil {
		live, isActive = a.actives.Active(name)
	}

	info := BuildInfo{
		LogFile:    name,
		JobID:      jobID,
		Status:     a.strategy.Infer(content, fi.ModTime(), isActive),
		SizeBytes:  fi.Size(),
		ModifiedAt: fi.ModTime(),
	}

	// Timestamped log lines take precedence over the filename stamp and
	// the file mtime for temporal extraction.
	first, last, ok := status.Timestamps(content)
	switch {
	case ok:
		info.StartedAt = &first
	case !stamp.IsZero():
		info.StartedAt = &stamp
	}
	if info.Status != status.Running {
		if ok {
			info.FinishedAt = &last
		} else {
			mtime := fi.ModTime()
			info.FinishedAt = &mtime
		}
	}
	if info.StartedAt != nil && info.FinishedAt != nil {
		d := info.FinishedAt.Sub(*info.StartedAt).Seconds()
		if d >= 0 {
			info.DurationSec = &d
		}
	}

	if isActive {
		info.PID = live.PID
		info.Params = live.Params
		info.CancelledAt = live.CancelledAt
		if info.StartedAt == nil {
			t := live.StartedAt
			info.StartedAt = &t
		}
	}

	return info, nil
}

// ListLogs returns the archive's log file names, newest stamp first.
func (a *Archive) ListLogs() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// ReadLog returns the raw content of one log. The name is confined to the
// archive directory; anything pathy is treated as not found.
func (a *Archive) ReadLog(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".log") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	content, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return content, nil
}

// MTime returns the modification time of one archive log, used as a cache
// freshness key by callers that mine the log.
func (a *Archive) MTime(name string) (time.Time, error) {
	if name == "" || name != filepath.Base(name) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	fi, err := os.Stat(filepath.Join(a.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// splitLogName parses "<stamp>.<job_id>.log" into its parts. Unparsable
// names yield a zero stamp and the trimmed name as job id.
func splitLogName(name string) (time.Time, string) {
	trimmed := strings.TrimSuffix(name, ".log")
	parts := strings.SplitN(trimmed, ".", 2)
	if len(parts) != 2 {
		return time.Time{}, trimmed
	}
	stamp, err := time.ParseInLocation("20060102_150405", parts[0], time.UTC)
	if err != nil {
		return time.Time{}, parts[1]
	}
	return stamp, parts[1]
}
