package logarchive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantops/pipedash/internal/status"
	"github.com/quantops/pipedash/internal/supervisor"
)

// fakeActives is a static active-set lookup.
type fakeActives map[string]supervisor.ActiveJob

func (f fakeActives) Active(logFile string) (supervisor.ActiveJob, bool) {
	job, ok := f[logFile]
	return job, ok
}

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func staleStrategy() status.Heuristic {
	// A far-future clock makes every mtime stale, so inference reduces to
	// live state and failure markers.
	return status.Heuristic{
		Freshness: time.Minute,
		Now:       func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestListBuildsEmptyDir(t *testing.T) {
	arch := New(filepath.Join(t.TempDir(), "missing"), staleStrategy(), nil, nil)
	builds, err := arch.ListBuilds()
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("len(builds) = %d, want 0", len(builds))
	}
}

func TestListBuilds(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "20250601_090000.train.log",
		"2025-06-01 09:00:00 START job=train cmd=python3 train.py\n"+
			"2025-06-01 09:00:05 epoch 1\n"+
			"2025-06-01 09:30:00 EXIT code=0\n")
	writeLog(t, dir, "20250601_100000.sweep.log",
		"2025-06-01 10:00:00 START job=sweep cmd=python3 sweep.py\n"+
			"Traceback (most recent call last):\n"+
			"2025-06-01 10:00:30 EXIT code=1\n")
	writeLog(t, dir, "notes.txt", "not a log\n")

	arch := New(dir, staleStrategy(), nil, nil)
	builds, err := arch.ListBuilds()
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("len(builds) = %d, want 2 (non-.log files skipped)", len(builds))
	}

	// Sorted by start time descending.
	if builds[0].JobID != "sweep" || builds[1].JobID != "train" {
		t.Errorf("order = %s, %s; want sweep, train", builds[0].JobID, builds[1].JobID)
	}

	sweep, train := builds[0], builds[1]
	if sweep.Status != status.Failed {
		t.Errorf("sweep status = %v, want failed", sweep.Status)
	}
	if train.Status != status.Success {
		t.Errorf("train status = %v, want success", train.Status)
	}

	wantStart := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if train.StartedAt == nil || !train.StartedAt.Equal(wantStart) {
		t.Errorf("train StartedAt = %v, want %v", train.StartedAt, wantStart)
	}
	wantFinish := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	if train.FinishedAt == nil || !train.FinishedAt.Equal(wantFinish) {
		t.Errorf("train FinishedAt = %v, want %v", train.FinishedAt, wantFinish)
	}
	if train.DurationSec == nil || *train.DurationSec != 1800 {
		t.Errorf("train DurationSec = %v, want 1800", train.DurationSec)
	}
}

func TestListBuildsUnstampedContentFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "20250601_090000.train.log", "plain output with no stamps\n")

	arch := New(dir, staleStrategy(), nil, nil)
	builds, err := arch.ListBuilds()
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 1 {
		t.Fatalf("len(builds) = %d, want 1", len(builds))
	}

	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if builds[0].StartedAt == nil || !builds[0].StartedAt.Equal(want) {
		t.Errorf("StartedAt = %v, want filename stamp %v", builds[0].StartedAt, want)
	}
	// Finished time falls back to the file mtime for a finished build.
	if builds[0].FinishedAt == nil {
		t.Error("FinishedAt = nil, want mtime fallback")
	}
}

func TestListBuildsActiveEnrichment(t *testing.T) {
	dir := t.TempDir()
	name := "20250601_090000.train.log"
	writeLog(t, dir, name, "2025-06-01 09:00:00 START job=train cmd=python3 train.py\n")

	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	actives := fakeActives{
		name: {
			LogFile:   name,
			JobID:     "train",
			PID:       777,
			StartedAt: started,
			Params:    map[string]any{"days": 30},
		},
	}

	arch := New(dir, staleStrategy(), actives, nil)
	builds, err := arch.ListBuilds()
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	b := builds[0]

	if b.Status != status.Running {
		t.Errorf("status = %v, want running (live handle wins)", b.Status)
	}
	if b.PID != 777 {
		t.Errorf("PID = %d, want 777", b.PID)
	}
	if b.Params["days"] != 30 {
		t.Errorf("Params = %v", b.Params)
	}
	if b.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil while running", b.FinishedAt)
	}
}

func TestReadLog(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "20250601_090000.train.log", "hello\n")
	arch := New(dir, staleStrategy(), nil, nil)

	content, err := arch.ReadLog("20250601_090000.train.log")
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if string(content) != "hello\n" {
		t.Errorf("content = %q", content)
	}

	for _, name := range []string{
		"absent.log",
		"../escape.log",
		"notes.txt",
		"",
	} {
		if _, err := arch.ReadLog(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadLog(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestListLogsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "20250601_090000.train.log", "a\n")
	writeLog(t, dir, "20250602_090000.train.log", "b\n")
	writeLog(t, dir, "readme.md", "skip\n")

	arch := New(dir, staleStrategy(), nil, nil)
	names, err := arch.ListLogs()
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	want := []string{"20250602_090000.train.log", "20250601_090000.train.log"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestSplitLogName(t *testing.T) {
	tests := []struct {
		name      string
		wantStamp time.Time
		wantJob   string
	}{
		{"20250601_090000.train.log", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), "train"},
		{"20250601_090000.data-sweep.log", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), "data-sweep"},
		{"oddname.log", time.Time{}, "oddname"},
		{"notastamp.train.log", time.Time{}, "train"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp, job := splitLogName(tt.name)
			if !stamp.Equal(tt.wantStamp) {
				t.Errorf("stamp = %v, want %v", stamp, tt.wantStamp)
			}
			if job != tt.wantJob {
				t.Errorf("job = %q, want %q", job, tt.wantJob)
			}
		})
	}
}
