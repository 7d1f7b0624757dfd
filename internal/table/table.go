package table

import "fmt"

// NotFound is returned by ColumnIndex when no header cell matches.
const NotFound = -1

// Row is an ordered sequence of cells. Rows may be shorter than the header.
type Row []Cell

// Table is a header row plus data rows.
//
// Column identity is the header cell's name and position together: callers
// resolve a field name to a position with ColumnIndex and then index rows.
type Table struct {
	Header Row   `json:"header"`
	Rows   []Row `json:"rows"`
}

// Width is the number of header cells.
func (t Table) Width() int { return len(t.Header) }

// Len is the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy. Cells are values, so copying the slices is enough
// to guarantee the copy never aliases t.
func (t Table) Clone() Table {
	out := Table{Header: cloneRow(t.Header)}
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = cloneRow(r)
		}
	}
	return out
}

func cloneRow(r Row) Row {
	if r == nil {
		return nil
	}
	return append(Row(nil), r...)
}

// Cell returns the cell at (row, col), or Empty when either index is out of range.
func (t Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) {
		return Empty()
	}
	return t.Rows[row].At(col)
}

// At returns the cell at col, or Empty when col is out of range for the row.
func (r Row) At(col int) Cell {
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// Strings renders every cell of r with the canonical stringify.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// ColumnIndex returns the zero-based position of the first header cell whose
// string form equals field exactly (case-sensitive), or NotFound.
func ColumnIndex(header Row, field string) int {
	for i, h := range header {
		if h.kind != KindEmpty && h.String() == field {
			return i
		}
	}
	return NotFound
}

// Column resolves field against t's header.
func (t Table) Column(field string) int { return ColumnIndex(t.Header, field) }

// FromMatrix builds a Table from a decoded sheet: the first row is the header.
// An empty matrix yields an empty Table.
func FromMatrix(m [][]Cell) Table {
	if len(m) == 0 {
		return Table{}
	}
	t := Table{Header: Row(m[0])}
	if len(m) > 1 {
		t.Rows = make([]Row, 0, len(m)-1)
		for _, r := range m[1:] {
			t.Rows = append(t.Rows, Row(r))
		}
	}
	return t
}

// Matrix is the inverse of FromMatrix, used when handing a table to an exporter.
// Ragged rows are kept as they are.
func (t Table) Matrix() [][]Cell {
	if len(t.Header) == 0 && len(t.Rows) == 0 {
		return nil
	}
	out := make([][]Cell, 0, len(t.Rows)+1)
	out = append(out, []Cell(t.Header))
	for _, r := range t.Rows {
		out = append(out, []Cell(r))
	}
	return out
}

// Workbook is what the ingestion side hands over: ordered sheet names and
// one table per sheet.
type Workbook struct {
	SheetNames []string
	Sheets     map[string]Table
}

// Sheet returns the named sheet.
func (w Workbook) Sheet(name string) (Table, bool) {
	t, ok := w.Sheets[name]
	return t, ok
}

// First returns the first sheet in order, if any.
func (w Workbook) First() (string, Table, bool) {
	for _, name := range w.SheetNames {
		if t, ok := w.Sheets[name]; ok {
			return name, t, true
		}
	}
	return "", Table{}, false
}

// Add appends a sheet. Duplicate names are rejected so SheetNames stays a set.
func (w *Workbook) Add(name string, t Table) error {
	if w.Sheets == nil {
		w.Sheets = make(map[string]Table)
	}
	if _, exists := w.Sheets[name]; exists {
		return fmt.Errorf("table: duplicate sheet %q", name)
	}
	w.SheetNames = append(w.SheetNames, name)
	w.Sheets[name] = t
	return nil
}
