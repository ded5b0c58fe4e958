// Package storage is the durable key/value store behind profiles and settings.
// Values live in a single SQLite table; every write is one statement, so a
// reader never sees a partially applied update.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	_ "modernc.org/sqlite"
)

var log = logging.Logger("storage")

// ErrNotFound is returned by typed getters when a key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Well-known keys.
const (
	KeyProfiles             = "profiles"
	KeySelectedProfile      = "selected_profile"
	KeyStreamVolume         = "stream_volume"
	KeyVisualizationEnabled = "visualization_enabled"
	KeyTheme                = "theme"
)

// DB wraps the SQLite settings database.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the database file at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps writes strictly ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _meta (
			key        TEXT PRIMARY KEY,
			value      TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}

	// Migration: add updated_at if missing (databases created before it existed)
	db.Exec(`ALTER TABLE _meta ADD COLUMN updated_at DATETIME DEFAULT CURRENT_TIMESTAMP`)

	log.Debugf("STORAGE: opened %s", path)
	return &DB{db: db, path: path}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// GetString returns the raw value for key. ok is false when the key is absent.
func (d *DB) GetString(key string) (value string, ok bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var v sql.NullString
	err = d.db.QueryRow(`SELECT value FROM _meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v.String, true, nil
}

// SetString stores or fully replaces the value for key.
func (d *DB) SetString(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT INTO _meta (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (d *DB) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.db.Exec(`DELETE FROM _meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetFloat reads a float value, returning ErrNotFound if the key is absent.
func (d *DB) GetFloat(key string) (float64, error) {
	s, ok, err := d.GetString(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return f, nil
}

func (d *DB) SetFloat(key string, v float64) error {
	return d.SetString(key, strconv.FormatFloat(v, 'g', -1, 64))
}

// GetBool reads a bool value, returning ErrNotFound if the key is absent.
func (d *DB) GetBool(key string) (bool, error) {
	s, ok, err := d.GetString(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (d *DB) SetBool(key string, v bool) error {
	return d.SetString(key, strconv.FormatBool(v))
}

// FloatOr returns the stored float for key, or def when absent or unreadable.
func (d *DB) FloatOr(key string, def float64) float64 {
	f, err := d.GetFloat(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warnf("STORAGE: %v, using default %v", err, def)
		}
		return def
	}
	return f
}

// BoolOr returns the stored bool for key, or def when absent or unreadable.
func (d *DB) BoolOr(key string, def bool) bool {
	b, err := d.GetBool(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warnf("STORAGE: %v, using default %v", err, def)
		}
		return def
	}
	return b
}

// StringOr returns the stored string for key, or def when absent.
func (d *DB) StringOr(key, def string) string {
	s, ok, err := d.GetString(key)
	if err != nil {
		log.Warnf("STORAGE: %v, using default %q", err, def)
		return def
	}
	if !ok {
		return def
	}
	return s
}
