// Package infra implements infrastructure concerns (process table, clock, registry).
package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// ListPIDs returns every PID in the process table.
func (pm *ProcessManagerImpl) ListPIDs(ctx context.Context) ([]int, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]int, len(pids))
	for i, pid := range pids {
		out[i] = int(pid)
	}
	return out, nil
}

// Inspect reads name and argv for pid.
func (pm *ProcessManagerImpl) Inspect(ctx context.Context, pid int) (domain.ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return domain.ProcessInfo{}, pm.classify(ctx, pid, err)
	}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		return domain.ProcessInfo{}, pm.classify(ctx, pid, err)
	}

	cmdline, err := p.CmdlineSliceWithContext(ctx)
	if err != nil {
		return domain.ProcessInfo{}, pm.classify(ctx, pid, err)
	}

	return domain.ProcessInfo{PID: pid, Name: name, Cmdline: cmdline}, nil
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return pm.classify(ctx, pid, err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return pm.classify(ctx, pid, err)
	}
	return nil
}

// Terminate sends SIGTERM to pid.
func (pm *ProcessManagerImpl) Terminate(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return pm.classify(ctx, pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return pm.classify(ctx, pid, err)
	}
	return nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// classify maps a gopsutil failure for pid onto domain.ErrProcessGone when the
// process has exited. Anything else is returned wrapped as-is.
func (pm *ProcessManagerImpl) classify(ctx context.Context, pid int, err error) error {
	if isGone(err) {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
	}
	// Errors like "permission denied" on /proc/<pid>/cmdline can also mean the
	// process died mid-read, so double check before reporting them.
	if exists, existsErr := process.PidExistsWithContext(ctx, int32(pid)); existsErr == nil && !exists {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}

func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, syscall.ESRCH)
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
