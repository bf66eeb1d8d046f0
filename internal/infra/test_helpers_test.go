package infra

import (
	"context"
	"os"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	killedPIDs  []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) ListPIDs(ctx context.Context) ([]int, error) {
	var pids []int
	for pid, running := range m.runningPIDs {
		if running {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Inspect(ctx context.Context, pid int) (domain.ProcessInfo, error) {
	if !m.runningPIDs[pid] {
		return domain.ProcessInfo{}, domain.ErrProcessGone
	}
	return domain.ProcessInfo{PID: pid}, nil
}

func (m *mockProcessManager) Kill(ctx context.Context, pid int) error {
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) Terminate(ctx context.Context, pid int) error {
	return m.Kill(ctx, pid)
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)
