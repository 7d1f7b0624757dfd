// Package workspace holds the state of one interactive session: the
// imported workbook, the selected sheet, a loaded snapshot and the current
// search query.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"statusboard/internal/metrics"
	"statusboard/internal/parser/xlsx"
	"statusboard/internal/snapshot"
	"statusboard/internal/stats"
	"statusboard/internal/table"
)

// ErrNoTable is returned when an operation needs a table and none is open.
var ErrNoTable = errors.New("workspace: no table open")

// IngestFunc decodes the file at path.
type IngestFunc func(path string) (table.Workbook, error)

// Session is not safe for concurrent use.
type Session struct {
	ingest IngestFunc
	now    func() time.Time

	workbook table.Workbook
	sheet    string
	source   string
	imported time.Duration

	loaded *snapshot.Snapshot
	query  string
}

// New returns an empty session that opens files with ingest.
func New(ingest IngestFunc) *Session {
	return &Session{ingest: ingest, now: time.Now}
}

// Open imports path. On failure the session is left exactly as it was.
// On success the first sheet is selected and any loaded snapshot is
// dropped.
func (s *Session) Open(path string) error {
	start := s.now()
	wb, err := s.ingest(path)
	if err != nil {
		return err
	}
	name, _, ok := wb.First()
	if !ok {
		return fmt.Errorf("workspace: %s has no sheets", filepath.Base(path))
	}

	s.workbook = wb
	s.sheet = name
	s.source = filepath.Base(path)
	s.imported = s.now().Sub(start)
	s.loaded = nil
	return nil
}

// ImportDuration is how long the last successful Open took.
func (s *Session) ImportDuration() time.Duration { return s.imported }

// Source is the base name of the last opened file.
func (s *Session) Source() string { return s.source }

// SheetNames lists the workbook's sheets in order.
func (s *Session) SheetNames() []string {
	return append([]string(nil), s.workbook.SheetNames...)
}

// Sheet is the selected sheet name.
func (s *Session) Sheet() string { return s.sheet }

// SelectSheet switches the displayed sheet and drops any loaded snapshot.
func (s *Session) SelectSheet(name string) error {
	if _, ok := s.workbook.Sheet(name); !ok {
		return fmt.Errorf("workspace: unknown sheet %q", name)
	}
	s.sheet = name
	s.loaded = nil
	return nil
}

// SetQuery sets the row filter; "" shows every row.
func (s *Session) SetQuery(q string) { s.query = q }

// Query is the current row filter.
func (s *Session) Query() string { return s.query }

// Loaded reports the name of the snapshot on display, if any.
func (s *Session) Loaded() (string, bool) {
	if s.loaded == nil {
		return "", false
	}
	return s.loaded.Name, true
}

// Current returns a copy of the table on display: the loaded snapshot if
// there is one, otherwise the selected sheet.
func (s *Session) Current() (table.Table, bool) {
	if s.loaded != nil {
		return s.loaded.Data.Clone(), true
	}
	t, ok := s.workbook.Sheet(s.sheet)
	if !ok {
		return table.Table{}, false
	}
	return t.Clone(), true
}

// Visible is Current narrowed by the query.
func (s *Session) Visible() (table.Table, bool) {
	t, ok := s.Current()
	if !ok {
		return table.Table{}, false
	}
	return t.Filter(s.query), true
}

// Summary aggregates the visible rows. ok is false when nothing is open
// or no row is visible.
func (s *Session) Summary(cards []stats.Card) (stats.Summary, bool) {
	t, ok := s.Visible()
	if !ok {
		return stats.Summary{}, false
	}
	return stats.Summarize(t, cards)
}

// SaveSnapshot stores the table on display (unfiltered) under name.
func (s *Session) SaveSnapshot(ctx context.Context, reg *snapshot.Registry, name string) (snapshot.Snapshot, error) {
	t, ok := s.Current()
	if !ok {
		return snapshot.Snapshot{}, ErrNoTable
	}
	start := time.Now()
	snap, err := reg.Save(ctx, name, t)
	metrics.RecordOp("save", start, err)
	return snap, err
}

// LoadSnapshot puts a copy of the named snapshot on display.
func (s *Session) LoadSnapshot(reg *snapshot.Registry, name string) error {
	snap, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("workspace: no snapshot named %q", name)
	}
	s.loaded = &snap
	return nil
}

// DeleteSnapshot removes name from reg. When it is the snapshot on display
// the session falls back to the selected sheet, or to nothing.
func (s *Session) DeleteSnapshot(ctx context.Context, reg *snapshot.Registry, name string) (bool, error) {
	start := time.Now()
	deleted, err := reg.Delete(ctx, name)
	metrics.RecordOp("delete", start, err)
	if err != nil {
		return false, err
	}
	if deleted && s.loaded != nil && s.loaded.Name == name {
		s.loaded = nil
	}
	return deleted, nil
}

// ExportName is the file name an export of the current source gets.
func (s *Session) ExportName() string {
	if s.loaded != nil && s.source == "" {
		return xlsx.ExportName(s.loaded.Name)
	}
	return xlsx.ExportName(s.source)
}

// Export writes the table on display (unfiltered) as an xlsx workbook.
func (s *Session) Export(w io.Writer) error {
	t, ok := s.Current()
	if !ok {
		return ErrNoTable
	}
	sheet := s.sheet
	if s.loaded != nil {
		sheet = s.loaded.Name
	}
	start := time.Now()
	err := xlsx.Export(w, sheet, t)
	metrics.RecordOp("export", start, err)
	return err
}
