package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"statusboard/internal/storage"
)

/*
KV implements storage.KV for Postgres.

One table (k TEXT PRIMARY KEY, v TEXT NOT NULL) is created on open; Set is an
INSERT ... ON CONFLICT (k) DO UPDATE so the stored blob is replaced atomically.
Table names may be schema-qualified ("app.statusboard_kv").
*/
type KV struct {
	pool  *pgxpool.Pool
	table string
}

// Open creates a pool for dsn and ensures the table exists.
func Open(ctx context.Context, dsn, table string) (*KV, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	kv := &KV{pool: pool, table: quoteTable(table)}
	if _, err := pool.Exec(ctx, createTableSQL(kv.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return kv, nil
}

// Close closes the connection pool.
func (r *KV) Close() {
	r.pool.Close()
}

func (r *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.pool.QueryRow(ctx, selectSQL(r.table), key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *KV) Set(ctx context.Context, key, value string) error {
	if _, err := r.pool.Exec(ctx, upsertSQL(r.table), key, value); err != nil {
		return fmt.Errorf("postgres: set %q: %w", key, err)
	}
	return nil
}

// quoteTable sanitizes a possibly schema-qualified table name.
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// The builders below are pure so they can be unit tested without a database.

func createTableSQL(quoted string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)`, quoted)
}

func selectSQL(quoted string) string {
	return fmt.Sprintf(`SELECT v FROM %s WHERE k = $1`, quoted)
}

func upsertSQL(quoted string) string {
	return fmt.Sprintf(`INSERT INTO %s (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`, quoted)
}

var _ storage.KV = (*KV)(nil)
