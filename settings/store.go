// Package settings persists the key-value settings shared with the host
// application (installed flag, disabled flag, stored VPN credentials).
//
// Plain values live in a SQLite database; secret keys are routed to a
// CredentialStore so passwords never touch the database file.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/yllada/vpnht/common"
)

const schema = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store implements common.SettingsStore on top of SQLite.
type Store struct {
	db      *sql.DB
	secrets common.CredentialStore
	secret  map[string]bool
}

// Open opens (creating if needed) the settings database at path.
// Keys listed in secretKeys are delegated to secrets.
func Open(path string, secrets common.CredentialStore, secretKeys ...string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	// Serialize access; writers would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize settings database: %w", err)
	}

	s := &Store{
		db:      db,
		secrets: secrets,
		secret:  make(map[string]bool, len(secretKeys)),
	}
	for _, k := range secretKeys {
		s.secret[k] = true
	}
	return s, nil
}

// OpenDefault opens the settings database in the config directory and routes
// the VPN password to secrets.
func OpenDefault(secrets common.CredentialStore) (*Store, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, common.SettingsFileName), secrets, common.SettingPassword)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetString reads a string setting. Missing keys read as "".
func (s *Store) GetString(key string) (string, error) {
	if s.secret[key] {
		if s.secrets == nil {
			return "", nil
		}
		v, err := s.secrets.Get(key)
		if errors.Is(err, common.ErrCredentialsNotFound) {
			return "", nil
		}
		return v, err
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// SetString writes a string setting.
func (s *Store) SetString(key, value string) error {
	if s.secret[key] {
		if s.secrets == nil {
			return fmt.Errorf("no credential store for secret setting %s", key)
		}
		return s.secrets.Store(key, value)
	}

	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// GetBool reads a boolean setting. Missing or unparsable values read as false.
func (s *Store) GetBool(key string) (bool, error) {
	raw, err := s.GetString(key)
	if err != nil || raw == "" {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		common.LogWarn("Setting %s has non-boolean value %q, treating as false", key, raw)
		return false, nil
	}
	return v, nil
}

// SetBool writes a boolean setting.
func (s *Store) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}
