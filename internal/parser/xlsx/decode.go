// Package xlsx reads and writes Office Open XML workbooks with excelize.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"statusboard/internal/table"
)

// Decoder reads every sheet of a workbook, in workbook order.
//
// Numeric cells (including dates, which are stored as serial numbers)
// become number cells; booleans become "true"/"false" text; every other
// value is text exactly as stored. Blank cells are Empty. Each sheet is
// read from its used range: leading blank rows and columns are dropped, so
// the first populated row is the header wherever it sits.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

func (d *Decoder) Decode(r io.Reader) (table.Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table.Workbook{}, fmt.Errorf("xlsx: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	var wb table.Workbook
	for _, sheet := range f.GetSheetList() {
		m, err := readSheet(f, sheet)
		if err != nil {
			return table.Workbook{}, err
		}
		if err := wb.Add(sheet, table.FromMatrix(m)); err != nil {
			return table.Workbook{}, err
		}
	}
	if len(wb.SheetNames) == 0 {
		return table.Workbook{}, fmt.Errorf("xlsx: workbook has no sheets")
	}
	return wb, nil
}

func readSheet(f *excelize.File, sheet string) ([][]table.Cell, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}
	m := make([][]table.Cell, len(rows))
	for ri, raw := range rows {
		row := make([]table.Cell, len(raw))
		for ci, v := range raw {
			c, err := convertCell(f, sheet, ci, ri, v)
			if err != nil {
				return nil, err
			}
			row[ci] = c
		}
		m[ri] = row
	}
	return usedRange(m), nil
}

// usedRange drops leading rows and columns that hold no value.
func usedRange(m [][]table.Cell) [][]table.Cell {
	for len(m) > 0 && blankRow(m[0]) {
		m = m[1:]
	}

	left := -1
	for _, row := range m {
		for ci, c := range row {
			if !c.IsEmpty() {
				if left < 0 || ci < left {
					left = ci
				}
				break
			}
		}
	}
	if left <= 0 {
		return m
	}
	for i, row := range m {
		if len(row) > left {
			m[i] = row[left:]
		} else {
			m[i] = nil
		}
	}
	return m
}

func blankRow(row []table.Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

func convertCell(f *excelize.File, sheet string, col, row int, v string) (table.Cell, error) {
	if v == "" {
		return table.Empty(), nil
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return table.Cell{}, fmt.Errorf("xlsx: %w", err)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return table.Cell{}, fmt.Errorf("xlsx: %s!%s: %w", sheet, axis, err)
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return table.Number(n), nil
		}
	case excelize.CellTypeBool:
		return table.Text(strconv.FormatBool(v == "1" || strings.EqualFold(v, "true"))), nil
	}
	return table.Text(v), nil
}
