package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"statusboard/internal/storage"
)

// KV implements storage.KV for Microsoft SQL Server.
//
// Set uses MERGE ... WITH (HOLDLOCK) so concurrent writers for the same key
// serialize on the key range instead of racing between an existence check
// and an insert.
//
// The "sqlserver" driver is not imported here; internal/storage/all
// registers it.
type KV struct {
	db    dbConn
	table string
}

// dbConn is the subset of *sql.DB used here; tests substitute a fake.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.KV, error) {
		return Open(ctx, cfg.DSN, cfg.TableName())
	})
}

// Open connects with the "sqlserver" driver, validates connectivity and
// ensures the table exists.
func Open(ctx context.Context, dsn, table string) (*KV, error) {
	raw, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	kv := &KV{db: raw, table: quoteTable(table)}
	if err := kv.ensureTable(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return kv, nil
}

// Close releases database resources held by this KV.
func (r *KV) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

func (r *KV) ensureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", r.table, err)
	}
	return nil
}

func (r *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, selectSQL(r.table), sql.Named("k", key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mssql: get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *KV) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, mergeSQL(r.table), sql.Named("k", key), sql.Named("v", value)); err != nil {
		return fmt.Errorf("mssql: set %q: %w", key, err)
	}
	return nil
}

// quoteTable brackets each part of a possibly schema-qualified name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

// objectName is the unquoted name OBJECT_ID expects, as a string literal.
func objectName(quoted string) string {
	return "N'" + strings.ReplaceAll(quoted, "'", "''") + "'"
}

func createTableSQL(quoted string) string {
	return fmt.Sprintf(
		`IF OBJECT_ID(%s, N'U') IS NULL CREATE TABLE %s (k NVARCHAR(450) NOT NULL PRIMARY KEY, v NVARCHAR(MAX) NOT NULL)`,
		objectName(quoted), quoted,
	)
}

func selectSQL(quoted string) string {
	return fmt.Sprintf(`SELECT v FROM %s WHERE k = @k`, quoted)
}

func mergeSQL(quoted string) string {
	return fmt.Sprintf(`MERGE %s WITH (HOLDLOCK) AS t
USING (SELECT @k AS k, @v AS v) AS s
ON t.k = s.k
WHEN MATCHED THEN UPDATE SET v = s.v
WHEN NOT MATCHED THEN INSERT (k, v) VALUES (s.k, s.v);`, quoted)
}

var _ storage.KV = (*KV)(nil)
