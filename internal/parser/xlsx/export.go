package xlsx

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"statusboard/internal/table"
)

const maxSheetName = 31

// Export writes t as the single sheet of a new workbook.
// Ragged rows stay ragged and Empty cells are left blank.
func Export(w io.Writer, sheet string, t table.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return fmt.Errorf("xlsx: sheet name %q: %w", name, err)
	}

	for ri, row := range t.Matrix() {
		for ci, c := range row {
			if c.IsEmpty() {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return fmt.Errorf("xlsx: %w", err)
			}
			if n, ok := c.Float(); ok {
				err = f.SetCellFloat(name, axis, n, -1, 64)
			} else {
				err = f.SetCellStr(name, axis, c.String())
			}
			if err != nil {
				return fmt.Errorf("xlsx: write %s: %w", axis, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

// SheetName makes name acceptable as a worksheet name: the characters
// []:*?/\ are replaced, the length capped at 31 runes, blank becomes "Sheet1".
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if rs := []rune(name); len(rs) > maxSheetName {
		name = string(rs[:maxSheetName])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// ExportName derives the download name for an export of source:
// the base name with its last extension replaced by "_modified.xlsx".
func ExportName(source string) string {
	base := filepath.Base(source)
	if source == "" || base == "." || base == string(filepath.Separator) {
		base = "statusboard"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_modified.xlsx"
}
