package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultTable is the table SQL backends keep their key/value rows in.
const DefaultTable = "statusboard_kv"

// Config is the minimal configuration needed to open a KV backend.
//
// When to use:
//   - Use Config when constructing a KV via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; its meaning is
//     backend-specific (a file path, a SQLite DSN, a Postgres URL, ...).
//   - Table is used by SQL backends only; empty means DefaultTable.
type Config struct {
	Kind  string `json:"kind"`
	DSN   string `json:"dsn"`
	Table string `json:"table,omitempty"`
}

// TableName returns cfg.Table or DefaultTable.
func (cfg Config) TableName() string {
	if t := strings.TrimSpace(cfg.Table); t != "" {
		return t
	}
	return DefaultTable
}

// KV is the persistence medium for saved snapshots: a string blob per key.
//
// Callers serialize their own values; backends only store and return opaque
// strings. Each backend
// implements "upsert" in its own idiomatic way (SQLite/Postgres ON CONFLICT,
// MSSQL MERGE, a whole-file rewrite, a map assignment).
type KV interface {
	// Get returns the value stored under key. ok is false when the key has
	// never been written; err is reserved for the medium itself failing.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value. When Set
	// returns nil the value is durable as far as the backend can tell.
	Set(ctx context.Context, key, value string) error

	// Close releases any backend resources (connections, file handles, etc).
	//
	// Edge cases:
	//   - Callers should treat Close as "call once" at shutdown.
	Close()
}

// ---- factories ----

type factory func(ctx context.Context, cfg Config) (KV, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a KV backend under a kind (e.g. "sqlite", "file").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. Failing fast avoids ambiguous backend
//     selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a KV using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (KV, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %s)", cfg.Kind, strings.Join(Kinds(), "|"))
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
