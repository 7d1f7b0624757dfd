package stats

import (
	"math"
	"reflect"
	"sort"
	"testing"

	"statusboard/internal/table"
)

func rows(vals ...[]string) []table.Row {
	out := make([]table.Row, len(vals))
	for i, v := range vals {
		r := make(table.Row, len(v))
		for j, s := range v {
			r[j] = table.ParseCell(s, false)
		}
		out[i] = r
	}
	return out
}

func TestCountValues_EveryRowCountsOnce(t *testing.T) {
	t.Parallel()

	rs := []table.Row{
		{table.Text("Open"), table.Text("a")},
		{table.Text("Closed")},
		{table.Text("Open")},
		{table.Empty(), table.Text("b")},
		{},
		{table.Number(3)},
		{table.Text(" Open")},
	}

	c := CountValues(rs, 0)
	if got := c.Total(); got != len(rs) {
		t.Fatalf("Total()=%d, want %d", got, len(rs))
	}

	want := map[string]int{"Open": 2, "Closed": 1, NotSpecified: 2, "3": 1, " Open": 1}
	if got := c.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Map()=%v, want %v", got, want)
	}
}

func TestCountValues_MissingColumn(t *testing.T) {
	t.Parallel()

	header := table.Row{table.Text("Status"), table.Text("Name")}
	rs := rows([]string{"Open", "x"}, []string{"Closed", "y"}, []string{"Open"})

	col := table.ColumnIndex(header, "Owner")
	if col != table.NotFound {
		t.Fatalf("ColumnIndex(Owner)=%d, want NotFound", col)
	}

	got := CountValues(rs, col).Map()
	want := map[string]int{NotSpecified: len(rs)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CountValues(NotFound)=%v, want %v", got, want)
	}
}

func TestCountTokens_PrefixAllowList(t *testing.T) {
	t.Parallel()

	rs := rows([]string{"FS-1, sec-2, SEC-3, other"})
	got := CountTokens(rs, 0, []string{"FS", "SEC"}).Map()
	want := map[string]int{"FS-1": 1, "SEC-3": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CountTokens=%v, want %v", got, want)
	}
}

func TestCountTokens_Semantics(t *testing.T) {
	t.Parallel()

	rs := []table.Row{
		{table.Text("CHG001,CHG002")},
		{table.Text(" CHG001 , INC9 ,")},
		{table.Empty()},
		{},
		{table.Text("")},
		{table.Text("chg003")},
	}

	c := CountTokens(rs, 0, []string{"CHG"})
	want := map[string]int{"CHG001": 2, "CHG002": 1}
	if got := c.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("CountTokens=%v, want %v", got, want)
	}
	if c.Get(NotSpecified) != 0 {
		t.Fatalf("token columns must not produce a %q bucket", NotSpecified)
	}

	if got := CountTokens(rs, table.NotFound, []string{"CHG"}); got.Len() != 0 {
		t.Fatalf("missing token column should count nothing, got %v", got.Map())
	}
	if got := CountTokens(rs, 0, nil); got.Len() != 0 {
		t.Fatalf("empty allow-list should keep nothing, got %v", got.Map())
	}
}

func TestBuildSeries_SortedAndTotalPreserved(t *testing.T) {
	t.Parallel()

	c := NewCounts()
	c.Add("Done", 5)
	c.Add("Blocked", 1)
	c.Add("In Progress", 3)
	c.Add("New", 3)
	c.Add("Cancelled", 1)

	s, ok := BuildSeries(c)
	if !ok {
		t.Fatalf("BuildSeries ok=false")
	}
	if s.Total() != c.Total() {
		t.Fatalf("series total=%d, want %d", s.Total(), c.Total())
	}
	if !sort.IntsAreSorted(s.Values) {
		t.Fatalf("values not sorted: %v", s.Values)
	}

	// Ties keep first-seen order.
	wantLabels := []string{"Blocked", "Cancelled", "In Progress", "New", "Done"}
	if !reflect.DeepEqual(s.Labels, wantLabels) {
		t.Fatalf("labels=%v, want %v", s.Labels, wantLabels)
	}
	if !reflect.DeepEqual(s.Values, []int{1, 1, 3, 3, 5}) {
		t.Fatalf("values=%v", s.Values)
	}
}

func TestBuildSeries_Deterministic(t *testing.T) {
	t.Parallel()

	rs := rows([]string{"b"}, []string{"a"}, []string{"c"}, []string{"a"}, []string{"b"}, []string{"d"})
	first, _ := BuildSeries(CountValues(rs, 0))
	for i := 0; i < 50; i++ {
		again, _ := BuildSeries(CountValues(rs, 0))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: %v != %v", i, again, first)
		}
	}
}

func TestBuildSeries_EmptyIsNoData(t *testing.T) {
	t.Parallel()

	if _, ok := BuildSeries(NewCounts()); ok {
		t.Fatalf("BuildSeries(empty) ok=true, want no data")
	}
	var zero Counts
	if _, ok := BuildSeries(zero); ok {
		t.Fatalf("BuildSeries(zero value) ok=true, want no data")
	}
}

func TestPercentages(t *testing.T) {
	t.Parallel()

	s := Series{Labels: []string{"a", "b", "c"}, Values: []int{1, 1, 1}}
	p, ok := Percentages(s)
	if !ok {
		t.Fatalf("Percentages ok=false")
	}
	for i, v := range p {
		if FormatPercent(v) != "33.3" {
			t.Fatalf("p[%d]=%s, want 33.3", i, FormatPercent(v))
		}
	}

	if _, ok := Percentages(Series{}); ok {
		t.Fatalf("Percentages(empty) ok=true")
	}
	if _, ok := Percentages(Series{Labels: []string{"x"}, Values: []int{0}}); ok {
		t.Fatalf("Percentages(zero sum) ok=true")
	}

	p, _ = Percentages(Series{Labels: []string{"a", "b"}, Values: []int{1, 3}})
	if math.Abs(p[0]-25) > 1e-9 || math.Abs(p[1]-75) > 1e-9 {
		t.Fatalf("percentages=%v, want [25 75]", p)
	}
}

func TestCounts_AddIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	var c Counts
	c.Add("x", 0)
	c.Add("x", -2)
	if c.Len() != 0 || c.Total() != 0 {
		t.Fatalf("non-positive deltas must be ignored, got %v", c.Map())
	}
}
