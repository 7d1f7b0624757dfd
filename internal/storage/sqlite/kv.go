package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"statusboard/internal/storage"
)

// KV implements storage.KV on SQLite.
//
// Key design points:
//   - One table, (k TEXT PRIMARY KEY, v TEXT NOT NULL), created on open.
//   - Set is a single "INSERT ... ON CONFLICT(k) DO UPDATE" statement, so a
//     write either fully lands or leaves the previous value in place.
//   - busy_timeout is set so a second process briefly holding the write lock
//     surfaces as a wait, not an immediate SQLITE_BUSY.
type KV struct {
	db    *sql.DB
	table string
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.KV, error) {
		return Open(ctx, cfg.DSN, cfg.TableName())
	})
}

// pragmas applied on open, same set for every connection in practice since
// the pool is capped at one connection.
var pragmas = []string{
	"PRAGMA busy_timeout = 10000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

// Open opens (creating if needed) the database at dsn and ensures the table.
func Open(ctx context.Context, dsn, table string) (*KV, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers inside this process.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	kv := &KV{db: db, table: table}
	if _, err := db.ExecContext(ctx, createTableSQL(table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return kv, nil
}

func (r *KV) Close() { _ = r.db.Close() }

func (r *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, selectSQL(r.table), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *KV) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertSQL(r.table), key, value); err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}
	return nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)`, sqlIdent(table))
}

func selectSQL(table string) string {
	return fmt.Sprintf(`SELECT v FROM %s WHERE k = ?`, sqlIdent(table))
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, sqlIdent(table))
}

var _ storage.KV = (*KV)(nil)
