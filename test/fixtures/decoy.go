// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

var decoySeq atomic.Int64

// UniqueToken returns an argv token no other process on the machine carries.
func UniqueToken(prefix string) string {
	return fmt.Sprintf("%s-%d-%d-%d", prefix, os.Getpid(), time.Now().UnixNano(), decoySeq.Add(1))
}

// Decoy is a long-running shell process whose command line carries Token as
// its own argument, standing in for a blocked application.
type Decoy struct {
	Token  string
	cmd    *exec.Cmd
	exited chan struct{}
}

// StartDecoy launches: sh -c 'while :; do sleep 1; done' <token>
// The loop keeps sh in the foreground so its argv is never replaced.
func StartDecoy(token string) (*Decoy, error) {
	cmd := exec.Command("sh", "-c", "while :; do sleep 1; done", token)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	d := &Decoy{Token: token, cmd: cmd, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(d.exited)
	}()
	return d, nil
}

// PID returns the decoy's process ID.
func (d *Decoy) PID() int {
	return d.cmd.Process.Pid
}

// Args returns the decoy's argument vector.
func (d *Decoy) Args() []string {
	return d.cmd.Args
}

// Exited is closed once the decoy has died and been reaped.
func (d *Decoy) Exited() <-chan struct{} {
	return d.exited
}

// Alive reports whether the decoy is still running.
func (d *Decoy) Alive() bool {
	select {
	case <-d.exited:
		return false
	default:
		return true
	}
}

// Stop kills the decoy's whole process group and waits for it.
func (d *Decoy) Stop() {
	_ = syscall.Kill(-d.cmd.Process.Pid, syscall.SIGKILL)
	select {
	case <-d.exited:
	case <-time.After(5 * time.Second):
	}
}
