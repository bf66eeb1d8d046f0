package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// ListPIDs returns every process ID currently visible to the OS.
	ListPIDs(ctx context.Context) ([]int, error)

	// Inspect reads a process's name and argument vector.
	// Returns an error wrapping ErrProcessGone if the process has exited.
	Inspect(ctx context.Context, pid int) (ProcessInfo, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(ctx context.Context, pid int) error

	// Terminate asks a process to exit (SIGTERM).
	Terminate(ctx context.Context, pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// Clock abstracts time for the enforcement loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Enforcer runs one active scan against a blocklist.
type Enforcer interface {
	Scan(ctx context.Context, blocklist Blocklist) (*ScanResult, error)
}

// DaemonRegistry records the running background enforcer so other invocations
// of the CLI can find it.
// Implementation: SQLCipher encrypted SQLite file in the exec-mode data dir.
type DaemonRegistry interface {
	// Register saves the daemon's PID and metadata, replacing any previous entry.
	Register(daemon Daemon) error

	// UpdateHeartbeat updates timestamp for liveness check.
	UpdateHeartbeat() error

	// RecordScan stores the summary of the latest active scan.
	RecordScan(result ScanResult) error

	// IsAlive checks if the registered daemon is running via PID.
	IsAlive() (bool, error)

	// GetAll returns full registry state (for status command). Nil if empty.
	GetAll() (*RegistryEntry, error)

	// Clear removes daemon state (on shutdown).
	Clear() error

	// GetRegistryPath returns the registry file path.
	GetRegistryPath() string

	// Close releases resources.
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
