// Package file implements storage.KV as a single JSON document on disk:
// {"<key>": "<value>", ...}.
//
// Every Set rewrites the whole document through a temp file + rename in the
// same directory, so a crash mid-write leaves either the old or the new
// document, never a truncated one. Set on an undecodable document moves it
// aside to "<path>.corrupt" and starts a fresh one.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"statusboard/internal/storage"
)

func init() {
	storage.Register("file", func(ctx context.Context, cfg storage.Config) (storage.KV, error) {
		return Open(cfg.DSN)
	})
}

// KV stores all keys in one JSON file.
type KV struct {
	path string
	mu   sync.Mutex
}

// Open returns a KV backed by path. The file is created lazily on first Set;
// its parent directory is created now.
func Open(path string) (*KV, error) {
	if path == "" {
		return nil, fmt.Errorf("file storage: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file storage: mkdir: %w", err)
		}
	}
	return &KV{path: path}, nil
}

// Path is the backing file.
func (kv *KV) Path() string { return kv.path }

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	doc, err := kv.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	doc, err := kv.read()
	if errors.Is(err, errCorrupt) {
		doc, err = kv.quarantine(err)
	}
	if err != nil {
		return err
	}
	doc[key] = value
	return kv.write(doc)
}

func (kv *KV) Close() {}

var errCorrupt = errors.New("corrupt document")

// quarantine renames the undecodable document to CorruptPath and returns an
// empty document to write in its place.
func (kv *KV) quarantine(cause error) (map[string]string, error) {
	if err := os.Rename(kv.path, kv.CorruptPath()); err != nil {
		return nil, fmt.Errorf("file storage: move aside %s: %w", kv.path, err)
	}
	log.Printf("file storage: moved corrupt document path=%s to=%s err=%v", kv.path, kv.CorruptPath(), cause)
	return map[string]string{}, nil
}

// CorruptPath is where Set moves an undecodable document.
func (kv *KV) CorruptPath() string { return kv.path + ".corrupt" }

// read returns the current document; a missing file is an empty document.
func (kv *KV) read() (map[string]string, error) {
	b, err := os.ReadFile(kv.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file storage: read %s: %w", kv.path, err)
	}
	doc := map[string]string{}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("file storage: decode %s: %w: %w", kv.path, errCorrupt, err)
	}
	return doc, nil
}

func (kv *KV) write(doc map[string]string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file storage: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(kv.path), filepath.Base(kv.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: close: %w", err)
	}
	if err := os.Rename(tmpName, kv.path); err != nil {
		return fmt.Errorf("file storage: rename: %w", err)
	}
	return nil
}

var _ storage.KV = (*KV)(nil)
