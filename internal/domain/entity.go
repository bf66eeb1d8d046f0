// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrMalformedSchedule is returned when a schedule fails validation.
	ErrMalformedSchedule = errors.New("malformed schedule")

	// ErrProcessGone means the process exited before it could be inspected or killed.
	ErrProcessGone = errors.New("process no longer exists")

	// ErrEmptyIdentifier is returned when adding a blank application identifier.
	ErrEmptyIdentifier = errors.New("application identifier is empty")

	// ErrLoopAlreadyStarted is returned by a second Start on the same loop.
	ErrLoopAlreadyStarted = errors.New("enforcement loop already started")

	// ErrLoopFinished is returned when starting a loop that was already stopped.
	// Loops are single-use; build a new one instead.
	ErrLoopFinished = errors.New("enforcement loop already finished")
)

// ProcessInfo is the metadata read from one OS process during a scan.
type ProcessInfo struct {
	PID     int
	Name    string
	Cmdline []string
}

// ScanResult captures what happened during a single active scan.
type ScanResult struct {
	Examined   int   // Processes whose metadata was read
	Vanished   int   // Processes that exited before they could be read or killed
	Unreadable int   // Processes whose metadata could not be read for another reason
	KilledPIDs []int // Processes a kill was successfully requested for
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// DaemonRole identifies the type of daemon process.
type DaemonRole string

const (
	RoleEnforcer DaemonRole = "enforcer"
)

// Daemon represents a running background enforcer.
type Daemon struct {
	PID        int
	Role       DaemonRole
	StartedAt  time.Time
	AppVersion string
	ConfigPath string
}

// RegistryEntry is the registry view used by the status command.
type RegistryEntry struct {
	PID            int
	StartedAt      int64
	LastHeartbeat  int64
	AppVersion     string
	ConfigPath     string
	Mode           string
	LastScanAt     int64
	LastScanKilled int
	TotalKilled    int
}
