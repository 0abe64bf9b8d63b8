package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/wedplan/internal/entity"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    body       TEXT NOT NULL,
    PRIMARY KEY (collection, id)
)`

// SQLBackend stores documents as JSON text in a single table, on SQLite
// or Postgres.
type SQLBackend struct {
	db      *sql.DB
	dialect dialect
}

var _ Backend = (*SQLBackend)(nil)

// OpenSQLite opens (creating if needed) a SQLite document database.
func OpenSQLite(ctx context.Context, path string) (*SQLBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return newSQLBackend(ctx, db, dialectSQLite)
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLBackend(ctx, db, dialectPostgres)
}

func newSQLBackend(ctx context.Context, db *sql.DB, d dialect) (*SQLBackend, error) {
	if _, err := db.ExecContext(ctx, documentsDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLBackend{db: db, dialect: d}, nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (b *SQLBackend) rebind(query string) string {
	if b.dialect != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Load implements Backend.
func (b *SQLBackend) Load(ctx context.Context, collection string) (map[string]entity.Record, error) {
	rows, err := b.db.QueryContext(ctx,
		b.rebind(`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`), collection)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]entity.Record)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var doc entity.Record
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out[id] = doc
	}
	return out, rows.Err()
}

// Put implements Backend.
func (b *SQLBackend) Put(ctx context.Context, collection, id string, doc entity.Record) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`),
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Remove implements Backend.
func (b *SQLBackend) Remove(ctx context.Context, collection, id string) error {
	_, err := b.db.ExecContext(ctx,
		b.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close implements Backend.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}
