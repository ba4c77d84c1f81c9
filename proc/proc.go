// Package proc spawns scrape workers as child processes and checks
// their liveness, which is what single-flight enforcement rests on.
package proc

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

type Spawner interface {
	Spawn(runID string, pages int) (pid int, err error)
	Alive(pid int) bool
}

// ExecSpawner re-invokes the current binary in one-shot scrape mode.
type ExecSpawner struct {
	Binary  string
	WorkDir string
}

func NewExecSpawner() (*ExecSpawner, error) {
	bin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	return &ExecSpawner{Binary: bin, WorkDir: wd}, nil
}

func (s *ExecSpawner) Spawn(runID string, pages int) (int, error) {
	cmd := exec.Command(s.Binary, "-scrape", "-run-id", runID, "-pages", strconv.Itoa(pages))
	cmd.Dir = s.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start worker: %w", err)
	}

	pid := cmd.Process.Pid

	// Reap the child so a finished worker does not linger as a zombie
	// and keep passing the liveness check.
	go func() { _ = cmd.Wait() }()

	return pid, nil
}

// Alive reports whether pid still refers to a live process, via the
// zero-signal probe.
func (s *ExecSpawner) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
