// Package table holds the in-memory dataset representation shared by every
// other package: a header row plus ragged data rows of typed cells.
//
// Cells are a closed tagged union (text, number, empty). All code that needs a
// cell as a string goes through Cell.String so that counting, filtering,
// rendering and export format numbers identically.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Cell holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is one primitive spreadsheet value. The zero value is Empty.
type Cell struct {
	kind Kind
	text string
	num  float64
}

// Text returns a text cell. Text("") is still a text cell, but IsEmpty
// reports true for it.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// Empty returns the missing-value cell.
func Empty() Cell { return Cell{} }

// Kind reports the variant held by c.
func (c Cell) Kind() Kind { return c.kind }

// IsEmpty reports whether c carries no value: Empty, or Text("").
func (c Cell) IsEmpty() bool {
	return c.kind == KindEmpty || (c.kind == KindText && c.text == "")
}

// Float returns the numeric value and true for number cells.
func (c Cell) Float() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// String is the canonical stringify. Numbers use the shortest decimal
// representation that round-trips ("42", "3.5", "0.1"); Empty is "".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes text as a JSON string, numbers as a JSON number and
// Empty as null, so persisted snapshots only hold primitive values.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.text)
	case KindNumber:
		return json.Marshal(c.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number, bool or null.
// Booleans become text ("true"/"false"); spreadsheet exports occasionally carry them.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = Empty()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Text(s)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*c = Text(strconv.FormatBool(v))
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("table: cell: %w", err)
		}
		*c = Number(f)
	}
	return nil
}

// ParseCell converts a raw decoded string into a cell. Empty input is Empty.
// When inferNumbers is set, strings that parse as finite floats become numbers.
func ParseCell(raw string, inferNumbers bool) Cell {
	if raw == "" {
		return Empty()
	}
	if inferNumbers {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !isSpecialFloatLiteral(raw) {
			return Number(f)
		}
	}
	return Text(raw)
}

// isSpecialFloatLiteral rejects words strconv accepts but spreadsheets treat
// as text ("Inf", "NaN", "infinity").
func isSpecialFloatLiteral(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == 'n' || ch == 'N' || ch == 'i' || ch == 'I' {
			return true
		}
	}
	return false
}
