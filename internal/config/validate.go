package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"statusboard/internal/stats"
	"statusboard/internal/storage"
)

// Severity grades an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted JSON path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message) }

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	storageKinds   = []string{"file", "memory", "sqlite", "postgres", "mssql"}
	parserKinds    = []string{"auto", "csv", "tsv", "xlsx", "html"}
	metricBackends = []string{"", "none", "noop", "datadog", "dd"}
)

// Validate checks c and returns every issue found; an empty result means c
// is usable.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	switch {
	case c.Storage.Kind == "":
		add(SeverityError, "storage.kind", "is required (one of %s)", strings.Join(storageKinds, "|"))
	case !oneOf(c.Storage.Kind, storageKinds):
		add(SeverityError, "storage.kind", "unknown kind %q (one of %s)", c.Storage.Kind, strings.Join(storageKinds, "|"))
	case c.Storage.Kind != "memory" && strings.TrimSpace(c.Storage.DSN) == "":
		add(SeverityError, "storage.dsn", "is required for kind %q", c.Storage.Kind)
	}
	if c.Storage.Kind == "memory" {
		add(SeverityWarning, "storage.kind", "memory storage discards snapshots when the process exits")
	}
	if _, err := storage.NormalizeKey(c.Storage.SnapshotKey()); err != nil {
		add(SeverityError, "storage.key", "%v", err)
	}

	if !oneOf(c.Parser.Kind, parserKinds) {
		add(SeverityError, "parser.kind", "unknown kind %q (one of %s)", c.Parser.Kind, strings.Join(parserKinds, "|"))
	}
	opts := c.Parser.Options
	if s, ok := opts["comma"].(string); ok && opts.Rune("comma", 0) == 0 {
		add(SeverityError, "parser.options.comma", "%q is not a single character", s)
	}
	if enc := opts.String("encoding", ""); enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			add(SeverityError, "parser.options.encoding", "unknown encoding %q", enc)
		}
	}

	if !oneOf(c.Metrics.Backend, metricBackends) {
		add(SeverityError, "metrics.backend", "unknown backend %q (want none|datadog)", c.Metrics.Backend)
	}
	if c.Metrics.FlushEverySeconds < 0 {
		add(SeverityError, "metrics.flush_every_seconds", "must be >= 0")
	}

	if len(c.Dashboard.Cards) == 0 {
		add(SeverityWarning, "dashboard.cards", "no cards configured; stats output will be empty")
	}
	for _, err := range stats.ValidateCards(c.Dashboard.Cards) {
		add(SeverityError, "dashboard", "%v", err)
	}

	return issues
}

func oneOf(s string, set []string) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}
