// Package snapshot keeps named copies of a table and persists the whole
// collection as one JSON array under a single storage key.
//
// The Registry is the only writer of its key inside a process. Each mutation
// holds the registry mutex for its full read-modify-write and swaps the
// in-memory collection only after the store accepted the new value, so the
// cache never diverges from what was persisted. Two processes sharing one
// store are last-writer-wins.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"statusboard/internal/table"
)

// DefaultKey is the storage key holding the serialized collection.
const DefaultKey = "saved_dashboards"

// TimeLayout formats SavedAt.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrPersist wraps every failure of the underlying store during a
	// mutation. The registry state is unchanged when it is returned.
	ErrPersist = errors.New("snapshot: persist failed")

	// ErrInvalidName is returned for names that are empty after trimming.
	ErrInvalidName = errors.New("snapshot: invalid name")
)

// Store is the persistence port. storage.KV satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Snapshot is a named copy of a table.
type Snapshot struct {
	Name    string      `json:"name"`
	Data    table.Table `json:"data"`
	SavedAt string      `json:"savedAt"`
}

func (s Snapshot) clone() Snapshot {
	s.Data = s.Data.Clone()
	return s
}

// Registry is safe for concurrent use.
type Registry struct {
	store  Store
	key    string
	now    func() time.Time
	logger *log.Logger

	mu    sync.Mutex
	items []Snapshot
}

// Option configures a Registry.
type Option func(*Registry)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(r *Registry) {
		if k := strings.TrimSpace(key); k != "" {
			r.key = k
		}
	}
}

// WithClock sets the clock used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Registry and loads the persisted collection once.
//
// A missing key, a failing store or an undecodable value all yield an empty
// registry; the condition is logged, not returned. The first successful Save
// then overwrites whatever was stored.
func New(ctx context.Context, store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		key:    DefaultKey,
		now:    time.Now,
		logger: log.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.items = r.load(ctx)
	return r
}

func (r *Registry) load(ctx context.Context) []Snapshot {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		r.logger.Printf("snapshot: load failed key=%s err=%v; starting empty", r.key, err)
		return nil
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var items []Snapshot
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		r.logger.Printf("snapshot: corrupt value key=%s err=%v; starting empty", r.key, err)
		return nil
	}
	return items
}

// Key is the storage key this registry persists under.
func (r *Registry) Key() string { return r.key }

// Save stores a copy of data under name, replacing an existing snapshot of
// the same name in place or appending a new one.
func (r *Registry) Save(ctx context.Context, name string, data table.Table) (Snapshot, error) {
	if strings.TrimSpace(name) == "" {
		return Snapshot{}, ErrInvalidName
	}
	snap := Snapshot{
		Name:    name,
		Data:    data.Clone(),
		SavedAt: r.now().Format(TimeLayout),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Snapshot, 0, len(r.items)+1)
	next = append(next, r.items...)
	if i := r.indexLocked(name); i >= 0 {
		next[i] = snap
	} else {
		next = append(next, snap)
	}

	if err := r.persistLocked(ctx, next); err != nil {
		return Snapshot{}, err
	}
	r.items = next
	return snap.clone(), nil
}

// Get returns a copy of the snapshot named name.
func (r *Registry) Get(name string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return Snapshot{}, false
	}
	return r.items[i].clone(), true
}

// Delete removes the snapshot named name. Deleting an absent name reports
// false and does not touch the store.
func (r *Registry) Delete(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return false, nil
	}
	next := make([]Snapshot, 0, len(r.items)-1)
	next = append(next, r.items[:i]...)
	next = append(next, r.items[i+1:]...)

	if err := r.persistLocked(ctx, next); err != nil {
		return false, err
	}
	r.items = next
	return true, nil
}

// List returns copies of all snapshots in storage order.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, len(r.items))
	for i, s := range r.items {
		out[i] = s.clone()
	}
	return out
}

// Len is the number of stored snapshots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) indexLocked(name string) int {
	for i := range r.items {
		if r.items[i].Name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) persistLocked(ctx context.Context, items []Snapshot) error {
	if items == nil {
		items = []Snapshot{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}
	if err := r.store.Set(ctx, r.key, string(b)); err != nil {
		return fmt.Errorf("%w: key=%s: %w", ErrPersist, r.key, err)
	}
	return nil
}
