// Package csv decodes delimited text into a single-sheet table.Workbook.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"statusboard/internal/config"
	"statusboard/internal/table"
)

// SheetName is the name of the only sheet a CSV workbook has.
const SheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder reads one CSV document.
//
// Options (all optional):
//
//	comma          field delimiter, one character or "tab" (default ',')
//	encoding       WHATWG label of the source encoding (default utf-8)
//	lazy_quotes    tolerate bare quotes inside fields (default false)
//	trim_space     trim surrounding whitespace from every field (default false)
//	infer_numbers  turn numeric-looking fields into number cells (default true)
//	has_header     first record is the header (default true); when false a
//	               "Column N" header is generated
type Decoder struct {
	comma     rune
	enc       encoding.Encoding
	lazy      bool
	trim      bool
	infer     bool
	hasHeader bool
}

// NewDecoder validates opt and builds a Decoder.
func NewDecoder(opt config.Options) (*Decoder, error) {
	d := &Decoder{
		comma:     opt.Rune("comma", ','),
		lazy:      opt.Bool("lazy_quotes", false),
		trim:      opt.Bool("trim_space", false),
		infer:     opt.Bool("infer_numbers", true),
		hasHeader: opt.Bool("has_header", true),
	}
	if d.comma == '"' || d.comma == '\r' || d.comma == '\n' {
		return nil, fmt.Errorf("csv: invalid comma %q", d.comma)
	}
	if label := opt.String("encoding", ""); label != "" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("csv: encoding %q: %w", label, err)
		}
		d.enc = enc
	}
	return d, nil
}

// Decode reads every record from r. A malformed record fails the whole
// document; no partial workbook is returned.
func (d *Decoder) Decode(r io.Reader) (table.Workbook, error) {
	src := r
	if d.enc != nil {
		src = transform.NewReader(r, d.enc.NewDecoder())
	}
	src, err := skipBOM(src)
	if err != nil {
		return table.Workbook{}, fmt.Errorf("csv: %w", err)
	}

	cr := csv.NewReader(src)
	cr.Comma = d.comma
	cr.LazyQuotes = d.lazy
	cr.FieldsPerRecord = -1

	var m [][]table.Cell
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Workbook{}, fmt.Errorf("csv: %w", err)
		}
		row := make([]table.Cell, len(rec))
		header := d.hasHeader && len(m) == 0
		for i, v := range rec {
			if d.trim {
				v = strings.TrimSpace(v)
			}
			row[i] = table.ParseCell(v, d.infer && !header)
		}
		m = append(m, row)
	}

	if !d.hasHeader {
		m = append([][]table.Cell{generatedHeader(m)}, m...)
	}

	var wb table.Workbook
	if err := wb.Add(SheetName, table.FromMatrix(m)); err != nil {
		return table.Workbook{}, err
	}
	return wb, nil
}

func generatedHeader(rows [][]table.Cell) []table.Cell {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	h := make([]table.Cell, width)
	for i := range h {
		h[i] = table.Text("Column " + strconv.Itoa(i+1))
	}
	return h
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br, nil
}
