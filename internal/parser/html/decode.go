// Package html decodes the <table> elements of an HTML document (a saved
// report page, an "export to HTML" from a tracker) into a table.Workbook.
package html

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"statusboard/internal/config"
	"statusboard/internal/table"
)

// ErrNoTables is returned for documents without a <table>.
var ErrNoTables = errors.New("html: no <table> found")

// Decoder turns each top-level or nested <table> into one sheet, in document
// order. The sheet is named after the table's <caption>, else "Table N".
// The first row is the header; a cell with colspan=N is followed by N-1
// Empty cells so later columns stay aligned.
type Decoder struct {
	infer bool
}

// NewDecoder reads "infer_numbers" (default true) from opt.
func NewDecoder(opt config.Options) *Decoder {
	return &Decoder{infer: opt.Bool("infer_numbers", true)}
}

func (d *Decoder) Decode(r io.Reader) (table.Workbook, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return table.Workbook{}, fmt.Errorf("parse html: %w", err)
	}

	var (
		wb   table.Workbook
		werr error
	)
	doc.Find("table").EachWithBreak(func(i int, tbl *goquery.Selection) bool {
		name := uniqueName(&wb, sheetName(tbl, i))
		if werr = wb.Add(name, table.FromMatrix(d.rows(tbl))); werr != nil {
			return false
		}
		return true
	})
	if werr != nil {
		return table.Workbook{}, werr
	}
	if len(wb.SheetNames) == 0 {
		return table.Workbook{}, ErrNoTables
	}
	return wb, nil
}

// rows collects the <tr> elements owned by tbl itself, skipping those of
// tables nested inside it.
func (d *Decoder) rows(tbl *goquery.Selection) [][]table.Cell {
	var m [][]table.Cell
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}
		header := len(m) == 0
		var row []table.Cell
		tr.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, table.ParseCell(cellText(cell), d.infer && !header))
			for n := colspan(cell); n > 1; n-- {
				row = append(row, table.Empty())
			}
		})
		m = append(m, row)
	})
	return m
}

func sheetName(tbl *goquery.Selection, i int) string {
	caption := tbl.ChildrenFiltered("caption").First()
	if name := cellText(caption); name != "" {
		return name
	}
	return "Table " + strconv.Itoa(i+1)
}

func uniqueName(wb *table.Workbook, name string) string {
	if _, taken := wb.Sheet(name); !taken {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if _, taken := wb.Sheet(candidate); !taken {
			return candidate
		}
	}
}

// cellText is the element's text with runs of whitespace collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func colspan(s *goquery.Selection) int {
	v, ok := s.Attr("colspan")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
