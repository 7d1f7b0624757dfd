package table

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterRows returns the rows where at least one cell contains query as a
// case-insensitive substring. An empty query returns every row in order.
// Empty cells never match. rows is not modified; the result shares the row
// values (cells are immutable values, so this is not observable).
func FilterRows(rows []Row, query string) []Row {
	if query == "" {
		out := make([]Row, len(rows))
		copy(out, rows)
		return out
	}

	// cases.Caser keeps state between calls; one per filter run.
	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if rowMatches(r, needle, fold) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r Row, needle string, fold cases.Caser) bool {
	for _, c := range r {
		if c.IsEmpty() {
			continue
		}
		if strings.Contains(fold.String(c.String()), needle) {
			return true
		}
	}
	return false
}

// Filter returns a new table with t's header and the rows matching query.
func (t Table) Filter(query string) Table {
	return Table{Header: cloneRow(t.Header), Rows: FilterRows(t.Rows, query)}
}
