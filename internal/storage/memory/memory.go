// Package memory implements an in-process storage.KV. Values live for the
// life of the KV only; it backs tests and throwaway runs.
package memory

import (
	"context"
	"sync"

	"statusboard/internal/storage"
)

func init() {
	storage.Register("memory", func(context.Context, storage.Config) (storage.KV, error) {
		return New(), nil
	})
}

// KV is a mutex-guarded map.
type KV struct {
	mu sync.RWMutex
	m  map[string]string
}

// New returns an empty KV.
func New() *KV { return &KV{m: make(map[string]string)} }

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

func (kv *KV) Close() {}

var _ storage.KV = (*KV)(nil)
