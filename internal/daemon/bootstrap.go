package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// DaemonCommand builds the self-exec command for the hidden "daemon" subcommand:
// zenmode daemon [--config path]. env entries (KEY=value) are added to the
// inherited environment.
func DaemonCommand(executable, configPath string, env []string) *exec.Cmd {
	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(executable, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}

// StartDaemon spawns the background enforcer from the current executable and
// returns its PID. The child is detached and keeps running after we exit.
func StartDaemon(configPath string, env []string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	return StartDaemonWithPath(executable, configPath, env)
}

// StartDaemonWithPath spawns the daemon from a specific binary.
func StartDaemonWithPath(executable, configPath string, env []string) (int, error) {
	cmd := DaemonCommand(executable, configPath, env)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid

	// Not waiting; release so the child is not tracked by us.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}
