package html

import (
	"errors"
	"strings"
	"testing"

	"statusboard/internal/config"
	"statusboard/internal/table"
)

const reportPage = `<html><body>
<h1>Weekly</h1>
<table>
  <caption> Project
     Tracker </caption>
  <thead><tr><th>Status</th><th>Count</th><th>Owner</th></tr></thead>
  <tbody>
    <tr><td>Open</td><td> 3 </td><td>ann</td></tr>
    <tr><td colspan="2">Closed</td><td>
      <table><tr><td>nested</td></tr></table>
    </td></tr>
    <tr><td></td></tr>
  </tbody>
</table>
<table><tr><th>A</th></tr><tr><td>x</td></tr></table>
<table><caption>Project Tracker</caption><tr><th>B</th></tr></table>
</body></html>`

func TestDecode_TablesBecomeSheets(t *testing.T) {
	t.Parallel()

	wb, err := NewDecoder(nil).Decode(strings.NewReader(reportPage))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := "Project Tracker|Table 2|Table 3|Project Tracker (2)"
	if got := strings.Join(wb.SheetNames, "|"); got != want {
		t.Fatalf("sheets=%q, want %q", got, want)
	}

	tracker, _ := wb.Sheet("Project Tracker")
	if got := strings.Join(tracker.Header.Strings(), "|"); got != "Status|Count|Owner" {
		t.Fatalf("header=%q", got)
	}
	if tracker.Len() != 3 {
		t.Fatalf("rows=%d, want 3 (nested table rows excluded)", tracker.Len())
	}
	if c := tracker.Cell(0, 1); c.Kind() != table.KindNumber || c.String() != "3" {
		t.Fatalf("Count=%v kind=%v", c, c.Kind())
	}
	if c := tracker.Cell(1, 2); c.String() != "nested" {
		t.Fatalf("cell holding nested table=%q", c.String())
	}
	if tracker.Cell(1, 1).Kind() != table.KindEmpty || len(tracker.Rows[1]) != 3 {
		t.Fatalf("colspan not padded: %v", tracker.Rows[1])
	}
	if tracker.Cell(2, 0).Kind() != table.KindEmpty {
		t.Fatalf("blank td kind=%v, want Empty", tracker.Cell(2, 0).Kind())
	}

	nested, _ := wb.Sheet("Table 2")
	if got := nested.Header.Strings(); len(got) != 1 || got[0] != "nested" {
		t.Fatalf("nested table header=%v", got)
	}
}

func TestDecode_InferNumbersOff(t *testing.T) {
	t.Parallel()

	wb, err := NewDecoder(config.Options{"infer_numbers": false}).Decode(strings.NewReader(
		`<table><tr><th>N</th></tr><tr><td>42</td></tr></table>`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, tb, _ := wb.First()
	if tb.Cell(0, 0).Kind() != table.KindText {
		t.Fatalf("kind=%v, want text", tb.Cell(0, 0).Kind())
	}
}

func TestDecode_NoTables(t *testing.T) {
	t.Parallel()

	_, err := NewDecoder(nil).Decode(strings.NewReader(`<p>nothing here</p>`))
	if !errors.Is(err, ErrNoTables) {
		t.Fatalf("err=%v, want ErrNoTables", err)
	}
}
