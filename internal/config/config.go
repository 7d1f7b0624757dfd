// Package config holds the statusboard JSON configuration, its defaults,
// environment overrides and validation.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"statusboard/internal/metrics/datadog"
	"statusboard/internal/snapshot"
	"statusboard/internal/stats"
	"statusboard/internal/storage"
)

// DefaultStoragePath is where the file backend keeps snapshots by default.
const DefaultStoragePath = "statusboard.json"

// Config is the root document.
type Config struct {
	Job       string    `json:"job"`
	Storage   Storage   `json:"storage"`
	Parser    Parser    `json:"parser"`
	Metrics   Metrics   `json:"metrics"`
	Dashboard Dashboard `json:"dashboard"`
}

// Storage selects the snapshot persistence backend.
type Storage struct {
	Kind  string `json:"kind"`
	DSN   string `json:"dsn"`
	Table string `json:"table,omitempty"`
	Key   string `json:"key,omitempty"`
}

// KV converts s into the storage factory's config.
func (s Storage) KV() storage.Config {
	return storage.Config{Kind: s.Kind, DSN: s.DSN, Table: s.Table}
}

// SnapshotKey is the key the snapshot collection lives under.
func (s Storage) SnapshotKey() string {
	if k := strings.TrimSpace(s.Key); k != "" {
		return k
	}
	return snapshot.DefaultKey
}

// Parser selects and tunes the ingestion decoder.
type Parser struct {
	// Kind is auto|csv|tsv|xlsx|html. auto picks by file extension.
	Kind    string  `json:"kind"`
	Options Options `json:"options,omitempty"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is none|datadog. Empty means none unless METRICS_BACKEND
	// names one.
	Backend           string   `json:"backend"`
	Tags              []string `json:"tags,omitempty"`
	FlushEverySeconds int      `json:"flush_every_seconds,omitempty"`
}

// Dashboard lists the tracked columns.
type Dashboard struct {
	Cards []stats.Card `json:"cards"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		Job:       "statusboard",
		Storage:   Storage{Kind: "file", DSN: DefaultStoragePath, Key: snapshot.DefaultKey},
		Parser:    Parser{Kind: "auto", Options: Options{}},
		Dashboard: Dashboard{Cards: stats.DefaultCards()},
	}
}

// Decode reads a JSON document over Default(): keys present in r replace the
// defaults, absent keys keep them. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	// Slices decode into existing elements field by field; start the card
	// list empty so a configured list fully replaces the built-in one.
	c.Dashboard.Cards = nil
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if c.Dashboard.Cards == nil {
		c.Dashboard.Cards = stats.DefaultCards()
	}
	if c.Parser.Options == nil {
		c.Parser.Options = Options{}
	}
	return c, nil
}

// Load opens and decodes path. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ApplyEnv applies environment overrides:
//
//	STATUSBOARD_STORAGE_KIND, STATUSBOARD_STORAGE_DSN  replace storage.kind / storage.dsn
//	METRICS_BACKEND                                    used when metrics.backend is empty
//	METRICS_TAGS                                       comma-separated, appended to metrics.tags
func ApplyEnv(c *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("STATUSBOARD_STORAGE_KIND")); v != "" {
		c.Storage.Kind = v
	}
	if v := strings.TrimSpace(getenv("STATUSBOARD_STORAGE_DSN")); v != "" {
		c.Storage.DSN = v
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = strings.TrimSpace(getenv("METRICS_BACKEND"))
	}
	c.Metrics.Tags = append(c.Metrics.Tags, datadog.ParseTagsCSV(getenv("METRICS_TAGS"))...)
}
