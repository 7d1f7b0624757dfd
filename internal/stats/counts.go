// Package stats turns table rows into category counts and chart-ready series.
//
// Pipeline: resolve column -> count (CountValues or CountTokens) -> BuildSeries.
// Percentages are derived from a Series on demand and never stored with it.
package stats

import (
	"strings"

	"statusboard/internal/table"
)

// NotSpecified is the label used for rows whose cell is missing or empty.
const NotSpecified = "Not Specified"

// Counts maps a category label to its occurrence count.
//
// Labels also remember the order they were first seen in, so a Series built
// from the same rows in the same order always comes out the same, including
// the relative order of tied counts.
type Counts struct {
	n     map[string]int
	order []string
}

// NewCounts returns an empty Counts.
func NewCounts() Counts {
	return Counts{n: make(map[string]int)}
}

// Add increments label by delta. Non-positive deltas are ignored.
func (c *Counts) Add(label string, delta int) {
	if delta <= 0 {
		return
	}
	if c.n == nil {
		c.n = make(map[string]int)
	}
	if _, seen := c.n[label]; !seen {
		c.order = append(c.order, label)
	}
	c.n[label] += delta
}

// Get returns the count for label (0 when absent).
func (c Counts) Get(label string) int { return c.n[label] }

// Len is the number of distinct labels.
func (c Counts) Len() int { return len(c.order) }

// Total is the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, v := range c.n {
		total += v
	}
	return total
}

// Labels returns labels in first-seen order.
func (c Counts) Labels() []string {
	return append([]string(nil), c.order...)
}

// Map returns a plain copy of the label -> count mapping.
func (c Counts) Map() map[string]int {
	out := make(map[string]int, len(c.n))
	for k, v := range c.n {
		out[k] = v
	}
	return out
}

// CountValues counts one label per row: the cell's canonical string, or
// NotSpecified when col is out of range for the row (including
// table.NotFound) or the cell is empty. Labels are not trimmed or case-folded.
func CountValues(rows []table.Row, col int) Counts {
	c := NewCounts()
	for _, r := range rows {
		cell := r.At(col)
		if cell.IsEmpty() {
			c.Add(NotSpecified, 1)
			continue
		}
		c.Add(cell.String(), 1)
	}
	return c
}

// CountTokens counts comma-separated tokens that start with one of prefixes.
//
// Missing or empty cells contribute nothing (there is no NotSpecified bucket
// here). Each token is trimmed of surrounding whitespace and counted under its
// own label; tokens matching no prefix are dropped. Prefix matching is
// case-sensitive.
func CountTokens(rows []table.Row, col int, prefixes []string) Counts {
	c := NewCounts()
	for _, r := range rows {
		cell := r.At(col)
		if cell.IsEmpty() {
			continue
		}
		for _, tok := range strings.Split(cell.String(), ",") {
			tok = strings.TrimSpace(tok)
			if hasAnyPrefix(tok, prefixes) {
				c.Add(tok, 1)
			}
		}
	}
	return c
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
