package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// newTestRegistry creates an encrypted registry in a temp directory for testing.
func newTestRegistry(t *testing.T) (*EncryptedRegistry, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	pm := newMockProcessManager()
	reg, err := NewEncryptedRegistry(dataDir, key, pm)
	require.NoError(t, err)

	t.Cleanup(func() { reg.Close() })
	return reg, dataDir
}

// newTestRegistryWithPM creates an encrypted registry with a custom process manager.
func newTestRegistryWithPM(t *testing.T, pm *mockProcessManager) *EncryptedRegistry {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	reg, err := NewEncryptedRegistry(dataDir, key, pm)
	require.NoError(t, err)

	t.Cleanup(func() { reg.Close() })
	return reg
}

func enforcerDaemon(pid int) domain.Daemon {
	return domain.Daemon{
		PID:        pid,
		Role:       domain.RoleEnforcer,
		StartedAt:  time.Unix(1700000000, 0),
		AppVersion: "0.5.0",
		ConfigPath: "/etc/zenmode.yaml",
	}
}

func TestEncryptedRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		daemons []domain.Daemon
		wantPID int
	}{
		{
			name:    "register enforcer",
			daemons: []domain.Daemon{enforcerDaemon(1234)},
			wantPID: 1234,
		},
		{
			name:    "re-register overwrites PID",
			daemons: []domain.Daemon{enforcerDaemon(1111), enforcerDaemon(2222)},
			wantPID: 2222,
		},
		{
			name:    "empty role defaults to enforcer",
			daemons: []domain.Daemon{{PID: 3333}},
			wantPID: 3333,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t)

			for _, d := range tt.daemons {
				require.NoError(t, reg.Register(d))
			}

			entry, err := reg.GetAll()
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, tt.wantPID, entry.PID)
		})
	}
}

func TestEncryptedRegistry_GetAll(t *testing.T) {
	t.Run("returns nil when empty", func(t *testing.T) {
		reg, _ := newTestRegistry(t)

		entry, err := reg.GetAll()
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("returns registered metadata", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		require.NoError(t, reg.Register(enforcerDaemon(1234)))

		entry, err := reg.GetAll()
		require.NoError(t, err)
		require.NotNil(t, entry)

		assert.Equal(t, 1234, entry.PID)
		assert.Equal(t, int64(1700000000), entry.StartedAt)
		assert.Equal(t, "0.5.0", entry.AppVersion)
		assert.Equal(t, "/etc/zenmode.yaml", entry.ConfigPath)
		assert.Equal(t, string(DetectExecMode().Mode), entry.Mode)
		assert.True(t, entry.LastHeartbeat > 0)
		assert.Zero(t, entry.LastScanAt)
		assert.Zero(t, entry.TotalKilled)
	})
}

func TestEncryptedRegistry_UpdateHeartbeat(t *testing.T) {
	t.Run("registered daemon", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		require.NoError(t, reg.Register(enforcerDaemon(1234)))
		assert.NoError(t, reg.UpdateHeartbeat())
	})

	t.Run("error when not registered", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		err := reg.UpdateHeartbeat()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})
}

func TestEncryptedRegistry_RecordScan(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register(enforcerDaemon(1234)))

	first := time.Unix(1700000100, 0)
	second := time.Unix(1700000200, 0)
	require.NoError(t, reg.RecordScan(domain.ScanResult{KilledPIDs: []int{10, 11}, ExecutedAt: first}))
	require.NoError(t, reg.RecordScan(domain.ScanResult{KilledPIDs: []int{12}, ExecutedAt: second}))

	entry, err := reg.GetAll()
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, second.Unix(), entry.LastScanAt)
	assert.Equal(t, 1, entry.LastScanKilled)
	assert.Equal(t, 3, entry.TotalKilled)

	// Re-registering resets the counters.
	require.NoError(t, reg.Register(enforcerDaemon(5678)))
	entry, err = reg.GetAll()
	require.NoError(t, err)
	assert.Zero(t, entry.TotalKilled)
}

func TestEncryptedRegistry_IsAlive(t *testing.T) {
	tests := []struct {
		name      string
		register  bool
		running   bool
		wantAlive bool
	}{
		{name: "alive when PID running", register: true, running: true, wantAlive: true},
		{name: "dead when PID not running", register: true, running: false, wantAlive: false},
		{name: "not alive when not registered", register: false, wantAlive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := newMockProcessManager()
			pm.SetRunning(1234, tt.running)
			reg := newTestRegistryWithPM(t, pm)

			if tt.register {
				require.NoError(t, reg.Register(enforcerDaemon(1234)))
			}

			alive, err := reg.IsAlive()
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlive, alive)
		})
	}
}

func TestEncryptedRegistry_Clear(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register(enforcerDaemon(1234)))
	require.NoError(t, reg.RecordScan(domain.ScanResult{KilledPIDs: []int{1}}))

	require.NoError(t, reg.Clear())

	entry, err := reg.GetAll()
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEncryptedRegistry_Encryption(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T)
	}{
		{
			name: "database file is unreadable without key",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, err := GenerateKey()
				require.NoError(t, err)

				reg, err := NewEncryptedRegistry(dataDir, key, newMockProcessManager())
				require.NoError(t, err)

				d := enforcerDaemon(1234)
				d.ConfigPath = "/home/someone/zen-config-marker.yaml"
				require.NoError(t, reg.Register(d))
				reg.Close()

				rawData, err := os.ReadFile(filepath.Join(dataDir, registryDBName))
				require.NoError(t, err)
				assert.NotContains(t, string(rawData), "zen-config-marker")
				assert.NotContains(t, string(rawData), "daemon_state")
			},
		},
		{
			name: "wrong key fails to open",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key1, _ := GenerateKey()
				key2, _ := GenerateKey()
				pm := newMockProcessManager()

				reg1, err := NewEncryptedRegistry(dataDir, key1, pm)
				require.NoError(t, err)
				require.NoError(t, reg1.Register(enforcerDaemon(1234)))
				reg1.Close()

				_, err = NewEncryptedRegistry(dataDir, key2, pm)
				assert.Error(t, err)
			},
		},
		{
			name: "correct key reads data",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, _ := GenerateKey()
				pm := newMockProcessManager()

				reg1, err := NewEncryptedRegistry(dataDir, key, pm)
				require.NoError(t, err)
				require.NoError(t, reg1.Register(enforcerDaemon(1234)))
				reg1.Close()

				reg2, err := NewEncryptedRegistry(dataDir, key, pm)
				require.NoError(t, err)
				defer reg2.Close()

				entry, err := reg2.GetAll()
				require.NoError(t, err)
				require.NotNil(t, entry)
				assert.Equal(t, 1234, entry.PID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFn)
	}
}

func TestEncryptedRegistry_Close_Idempotent(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	reg, err := NewEncryptedRegistry(dataDir, key, newMockProcessManager())
	require.NoError(t, err)

	assert.NoError(t, reg.Close())

	reg.db = nil
	assert.NoError(t, reg.Close())
}

func TestEncryptedRegistry_GetRegistryPath(t *testing.T) {
	reg, dataDir := newTestRegistry(t)
	assert.Equal(t, filepath.Join(dataDir, registryDBName), reg.GetRegistryPath())
}
