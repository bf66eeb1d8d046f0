package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as an ordinary user and can only kill that user's processes.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root and can kill any process.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Where encrypted registry and key live
	LogPath string // Daemon log file
	IsRoot  bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:    ExecModeSystem,
			DataDir: "/var/lib/zenmode",
			LogPath: "/var/log/zenmode.log",
			IsRoot:  true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode config regardless of current euid.
// Under sudo the invoking user's home directory is used.
func GetUserModeConfig() *ExecModeConfig {
	home := GetRealUserHome()
	dataDir := filepath.Join(home, ".zenmode")
	return &ExecModeConfig{
		Mode:    ExecModeUser,
		DataDir: dataDir,
		LogPath: filepath.Join(dataDir, "zenmode.log"),
		IsRoot:  os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root, all users' processes)"
	case ExecModeUser:
		return "user (own processes only)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
