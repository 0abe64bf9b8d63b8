package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database from user_version i to i+1. Version 0
// is an empty file; schema.sql brings it to version 1.
var migrations = []string{
	schemaSQL,
}

// SQLiteKV is the on-device key-value store backing local persistence.
// WAL mode lets `wedplan list` read while `wedplan watch` writes.
type SQLiteKV struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating its directory,
// and brings the schema up to date. Opening the same path repeatedly is
// safe.
func Open(path string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: pragmas are per connection and SQLite has a single
	// writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteKV{db: db}, nil
}

// dsn passes the connection pragmas to go-sqlite3 as URI parameters.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}
	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to %d: %w", v+1, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key. Missing keys report false with a
// nil error.
func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key.
func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in ascending order.
func (s *SQLiteKV) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// pragma reads a connection setting.
func (s *SQLiteKV) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow(`PRAGMA ` + name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}
