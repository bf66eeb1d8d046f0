package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	registryDBName = "registry.db"
)

// EncryptedRegistry implements domain.DaemonRegistry using a SQLCipher
// encrypted SQLite database.
type EncryptedRegistry struct {
	db             *sql.DB
	dbPath         string
	processManager domain.ProcessManager
}

// NewEncryptedRegistry opens (or creates) an encrypted registry database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedRegistry(dataDir string, key []byte, pm domain.ProcessManager) (*EncryptedRegistry, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, registryDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	reg := &EncryptedRegistry{
		db:             db,
		dbPath:         dbPath,
		processManager: pm,
	}

	if err := reg.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return reg, nil
}

func (r *EncryptedRegistry) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daemon_state (
		role TEXT PRIMARY KEY,
		pid INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		last_heartbeat INTEGER NOT NULL,
		app_version TEXT DEFAULT '',
		config_path TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Register saves the enforcer's PID and metadata and resets scan counters.
func (r *EncryptedRegistry) Register(daemon domain.Daemon) error {
	now := time.Now().Unix()
	startedAt := now
	if !daemon.StartedAt.IsZero() {
		startedAt = daemon.StartedAt.Unix()
	}
	role := daemon.Role
	if role == "" {
		role = domain.RoleEnforcer
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daemon_state`); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO daemon_state (role, pid, started_at, last_heartbeat, app_version, config_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(role), daemon.PID, startedAt, now, daemon.AppVersion, daemon.ConfigPath,
	)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"mode":             string(DetectExecMode().Mode),
		"last_scan_at":     "0",
		"last_scan_killed": "0",
		"total_killed":     "0",
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *EncryptedRegistry) UpdateHeartbeat() error {
	now := time.Now().Unix()
	result, err := r.db.Exec(`UPDATE daemon_state SET last_heartbeat = ? WHERE role = ?`,
		now, string(domain.RoleEnforcer))
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("daemon %s not registered", domain.RoleEnforcer)
	}
	return nil
}

// RecordScan stores the latest scan time and kill count and adds the kills to
// the running total.
func (r *EncryptedRegistry) RecordScan(result domain.ScanResult) error {
	killed := len(result.KilledPIDs)
	executedAt := result.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	total, err := metaInt(tx.QueryRow(`SELECT value FROM meta WHERE key = 'total_killed'`))
	if err != nil {
		return err
	}

	meta := map[string]string{
		"last_scan_at":     strconv.FormatInt(executedAt.Unix(), 10),
		"last_scan_killed": strconv.Itoa(killed),
		"total_killed":     strconv.Itoa(total + killed),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// IsAlive checks whether the registered enforcer PID is still running.
func (r *EncryptedRegistry) IsAlive() (bool, error) {
	var pid int
	err := r.db.QueryRow(`SELECT pid FROM daemon_state WHERE role = ?`,
		string(domain.RoleEnforcer)).Scan(&pid)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pid == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(pid), nil
}

// GetAll returns full registry state (for status command), or nil when no
// enforcer is registered.
func (r *EncryptedRegistry) GetAll() (*domain.RegistryEntry, error) {
	entry := &domain.RegistryEntry{}

	err := r.db.QueryRow(`
		SELECT pid, started_at, last_heartbeat, app_version, config_path
		FROM daemon_state WHERE role = ?`, string(domain.RoleEnforcer)).
		Scan(&entry.PID, &entry.StartedAt, &entry.LastHeartbeat, &entry.AppVersion, &entry.ConfigPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		switch k {
		case "mode":
			entry.Mode = v
		case "last_scan_at":
			entry.LastScanAt, _ = strconv.ParseInt(v, 10, 64)
		case "last_scan_killed":
			entry.LastScanKilled, _ = strconv.Atoi(v)
		case "total_killed":
			entry.TotalKilled, _ = strconv.Atoi(v)
		}
	}
	return entry, rows.Err()
}

// Clear removes all daemon state.
func (r *EncryptedRegistry) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM daemon_state`); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM meta`)
	return err
}

// GetRegistryPath returns the database file path.
func (r *EncryptedRegistry) GetRegistryPath() string {
	return r.dbPath
}

// Close releases the database connection.
func (r *EncryptedRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func metaInt(row *sql.Row) (int, error) {
	var v string
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %q: %w", v, err)
	}
	return n, nil
}

var _ domain.DaemonRegistry = (*EncryptedRegistry)(nil)
