// Package ingest picks a decoder for a source file and turns it into a
// table.Workbook.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statusboard/internal/config"
	"statusboard/internal/metrics"
	"statusboard/internal/parser/csv"
	"statusboard/internal/parser/html"
	"statusboard/internal/parser/xlsx"
	"statusboard/internal/table"
)

// ErrUnsupportedFormat is returned when no decoder matches.
var ErrUnsupportedFormat = errors.New("ingest: unsupported format")

// Decoder turns a byte stream into a workbook. Decoding either succeeds
// completely or returns an error and an empty workbook.
type Decoder interface {
	Decode(r io.Reader) (table.Workbook, error)
}

// Formats by file extension.
var extFormats = map[string]string{
	".xlsx": "xlsx",
	".xlsm": "xlsx",
	".csv":  "csv",
	".txt":  "csv",
	".tsv":  "tsv",
	".html": "html",
	".htm":  "html",
}

// FormatOf resolves kind ("auto" or empty means by extension of path).
func FormatOf(path, kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && kind != "auto" {
		return kind, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
}

// ForPath returns the decoder for path under the parser configuration,
// along with the resolved format name.
func ForPath(path string, p config.Parser) (Decoder, string, error) {
	format, err := FormatOf(path, p.Kind)
	if err != nil {
		return nil, "", err
	}
	d, err := ForFormat(format, p.Options)
	if err != nil {
		return nil, "", err
	}
	return d, format, nil
}

// ForFormat builds the decoder for a resolved format name.
func ForFormat(format string, opt config.Options) (Decoder, error) {
	switch format {
	case "xlsx":
		return xlsx.NewDecoder(), nil
	case "csv":
		return csv.NewDecoder(opt)
	case "tsv":
		o := config.Options{}
		for k, v := range opt {
			o[k] = v
		}
		if _, set := o["comma"]; !set {
			o["comma"] = "tab"
		}
		return csv.NewDecoder(o)
	case "html":
		return html.NewDecoder(opt), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// File decodes the file at path and records ingest metrics.
func File(path string, p config.Parser) (table.Workbook, error) {
	start := time.Now()
	wb, format, err := decodeFile(path, p)
	metrics.RecordOp("ingest", start, err)
	if err != nil {
		return table.Workbook{}, err
	}
	n := 0
	for _, name := range wb.SheetNames {
		n += wb.Sheets[name].Len()
	}
	metrics.RowsIngested(format, n)
	return wb, nil
}

func decodeFile(path string, p config.Parser) (table.Workbook, string, error) {
	d, format, err := ForPath(path, p)
	if err != nil {
		return table.Workbook{}, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return table.Workbook{}, "", fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	wb, err := d.Decode(f)
	if err != nil {
		return table.Workbook{}, "", fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	return wb, format, nil
}
