package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/quantops/pipedash/internal/registry"
)

// Process is a handle to a spawned pipeline process.
type Process interface {
	// PID returns the operating-system process id.
	PID() int
	// Terminate requests graceful termination (SIGTERM).
	Terminate() error
	// Kill forcefully terminates the process.
	Kill() error
	// Wait blocks until the process exits and returns its exit code.
	// A process that could not report a code (signal death, wait error)
	// yields -1.
	Wait() int
}

// Spawner starts a rendered execution plan with its output wired to a
// single sink. Injectable so the supervisor can be tested with a fake.
type Spawner interface {
	Spawn(plan registry.ExecutionPlan, sink io.Writer) (Process, error)
}

// ExecSpawner spawns real processes via os/exec. Stdout and stderr are
// multiplexed into the same sink, interleaved, with no separate channels.
type ExecSpawner struct{}

// Spawn implements Spawner.
func (ExecSpawner) Spawn(plan registry.ExecutionPlan, sink io.Writer) (Process, error) {
	if len(plan.Argv) == 0 {
		return nil, errors.New("empty argv")
	}

	cmd := exec.Command(plan.Argv[0], plan.Argv[1:]...)
	cmd.Dir = plan.Workdir
	cmd.Stdout = sink
	cmd.Stderr = sink

	env := os.Environ()
	for k, v := range plan.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return errors.New("process not started")
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return errors.New("process not started")
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() int {
	err := p.cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
