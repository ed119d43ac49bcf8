package supervisor

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantops/pipedash/internal/registry"
)

// fakeProcess is a controllable Process: Wait blocks until exit is called.
type fakeProcess struct {
	pid        int
	exitCh     chan int
	mu         sync.Mutex
	terminated bool
	killed     bool
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exitCh: make(chan int, 1)}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	return nil
}

func (p *fakeProcess) Wait() int { return <-p.exitCh }

func (p *fakeProcess) exit(code int) { p.exitCh <- code }

// fakeSpawner hands out pre-built processes, or fails.
type fakeSpawner struct {
	proc Process
	err  error
}

func (s fakeSpawner) Spawn(plan registry.ExecutionPlan, sink io.Writer) (Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proc, nil
}

func testPlan() registry.ExecutionPlan {
	return registry.ExecutionPlan{
		JobID:        "train",
		Argv:         []string{"python3", "train.py", "--days", "30"},
		Workdir:      ".",
		PublicParams: map[string]any{"days": 30},
	}
}

func waitInactive(t *testing.T, sup *Supervisor, logFile string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, active := sup.Active(logFile); !active {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s still active after deadline", logFile)
}

func TestStartRegistersAndReaps(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcess(4321)
	sup := New(dir, fakeSpawner{proc: proc}, nil)
	sup.SetNow(func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	})

	result, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if result.LogFile != "20250601_090000.train.log" {
		t.Errorf("LogFile = %q", result.LogFile)
	}
	if result.PID != 4321 {
		t.Errorf("PID = %d, want 4321", result.PID)
	}

	job, active := sup.Active(result.LogFile)
	if !active {
		t.Fatal("job not in active set after Start")
	}
	if job.JobID != "train" || job.PID != 4321 {
		t.Errorf("ActiveJob = %+v", job)
	}
	if job.Params["days"] != 30 {
		t.Errorf("Params = %v", job.Params)
	}

	proc.exit(0)
	waitInactive(t, sup, result.LogFile)

	content, err := os.ReadFile(filepath.Join(dir, result.LogFile))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "2025-06-01 09:00:00 START job=train cmd=python3 train.py --days 30") {
		t.Errorf("missing START marker in:\n%s", text)
	}
	if !strings.Contains(text, "EXIT code=0") {
		t.Errorf("missing EXIT marker in:\n%s", text)
	}
}

func TestStartSpawnFailure(t *testing.T) {
	dir := t.TempDir()
	sup := New(dir, fakeSpawner{err: errors.New("no such interpreter")}, nil)
	sup.SetNow(func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	})

	_, err := sup.Start(testPlan())
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("Start() error = %v, want ErrSpawn", err)
	}
	if len(sup.ListActive()) != 0 {
		t.Error("failed start left a job in the active set")
	}

	// The log still exists and is closed with a failure EXIT marker.
	content, err := os.ReadFile(filepath.Join(dir, "20250601_090000.train.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "EXIT code=-1") {
		t.Errorf("missing EXIT code=-1 marker in:\n%s", content)
	}
}

func TestStartCollidingLogNames(t *testing.T) {
	dir := t.TempDir()
	p1, p2 := newFakeProcess(1), newFakeProcess(2)
	sup := New(dir, fakeSpawner{proc: p1}, nil)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sup.SetNow(func() time.Time { return fixed })

	r1, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	sup.spawner = fakeSpawner{proc: p2}
	r2, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if r1.LogFile == r2.LogFile {
		t.Errorf("same-second starts share a log identity: %q", r1.LogFile)
	}
	if r2.LogFile != "20250601_090001.train.log" {
		t.Errorf("second LogFile = %q, want probed-forward stamp", r2.LogFile)
	}

	p1.exit(0)
	p2.exit(0)
	waitInactive(t, sup, r1.LogFile)
	waitInactive(t, sup, r2.LogFile)
}

func TestKill(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcess(99)
	sup := New(dir, fakeSpawner{proc: proc}, nil)
	sup.SetKillGrace(20 * time.Millisecond)

	result, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := sup.Kill(result.LogFile); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	job, active := sup.Active(result.LogFile)
	if !active {
		t.Fatal("kill must not remove the job before it exits")
	}
	if job.CancelledAt == nil {
		t.Error("CancelledAt not set after Kill")
	}

	proc.mu.Lock()
	terminated := proc.terminated
	proc.mu.Unlock()
	if !terminated {
		t.Error("process was not terminated")
	}

	// The process ignores the graceful signal; escalation kicks in.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		proc.mu.Lock()
		killed := proc.killed
		proc.mu.Unlock()
		if killed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	proc.mu.Lock()
	killed := proc.killed
	proc.mu.Unlock()
	if !killed {
		t.Error("kill was not escalated after the grace period")
	}

	proc.exit(143)
	waitInactive(t, sup, result.LogFile)

	content, _ := os.ReadFile(filepath.Join(dir, result.LogFile))
	if !strings.Contains(string(content), "CANCEL requested pid=99") {
		t.Errorf("missing CANCEL marker in:\n%s", content)
	}
	if !strings.Contains(string(content), "EXIT code=143") {
		t.Errorf("missing EXIT marker in:\n%s", content)
	}
}

func TestKillNotActive(t *testing.T) {
	sup := New(t.TempDir(), fakeSpawner{}, nil)
	if err := sup.Kill("20250601_090000.train.log"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Kill(absent) error = %v, want ErrNotActive", err)
	}
}

func TestListActiveNewestFirst(t *testing.T) {
	dir := t.TempDir()
	p1, p2 := newFakeProcess(1), newFakeProcess(2)
	sup := New(dir, fakeSpawner{proc: p1}, nil)

	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sup.SetNow(func() time.Time { return clock })
	r1, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock = clock.Add(time.Minute)
	sup.spawner = fakeSpawner{proc: p2}
	r2, err := sup.Start(testPlan())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	active := sup.ListActive()
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	if active[0].LogFile != r2.LogFile || active[1].LogFile != r1.LogFile {
		t.Errorf("active order = %s, %s; want newest first", active[0].LogFile, active[1].LogFile)
	}

	p1.exit(0)
	p2.exit(0)
	waitInactive(t, sup, r1.LogFile)
	waitInactive(t, sup, r2.LogFile)
}
