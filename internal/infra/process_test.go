package infra

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

func TestProcessManager_ListIncludesSelf(t *testing.T) {
	pm := NewProcessManager()

	pids, err := pm.ListPIDs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestProcessManager_InspectSelf(t *testing.T) {
	pm := NewProcessManager()

	info, err := pm.Inspect(context.Background(), pm.GetCurrentPID())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.NotEmpty(t, info.Name)
	assert.NotEmpty(t, info.Cmdline)
}

func TestProcessManager_KillChild(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	pm := NewProcessManager()
	info, err := pm.Inspect(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "60"}, info.Cmdline)

	require.NoError(t, pm.Kill(context.Background(), pid))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err, "sleep should exit by signal")
	case <-time.After(5 * time.Second):
		t.Fatal("child was not killed")
	}
}

func TestProcessManager_ExitedProcessIsGone(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	pid := cmd.Process.Pid

	pm := NewProcessManager()

	_, err := pm.Inspect(context.Background(), pid)
	assert.ErrorIs(t, err, domain.ErrProcessGone)

	err = pm.Kill(context.Background(), pid)
	assert.ErrorIs(t, err, domain.ErrProcessGone)

	assert.False(t, pm.IsRunning(pid))
}

func TestIsGone(t *testing.T) {
	assert.True(t, isGone(process.ErrorProcessNotRunning))
	assert.True(t, isGone(os.ErrNotExist))
	assert.True(t, isGone(syscall.ESRCH))
	assert.False(t, isGone(os.ErrPermission))
	assert.False(t, isGone(errors.New("boom")))
}
