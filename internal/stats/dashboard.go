package stats

import (
	"fmt"

	"statusboard/internal/table"
)

// ChartKind selects how a panel is drawn.
type ChartKind string

const (
	ChartBar ChartKind = "bar"
	ChartPie ChartKind = "pie"
)

// Valid reports whether k is a known chart kind.
func (k ChartKind) Valid() bool { return k == ChartBar || k == ChartPie }

// Card describes one tracked column on the dashboard.
//
// A card with Prefixes is a multi-value column: its cells hold comma-separated
// tokens and only tokens starting with one of Prefixes are counted.
type Card struct {
	Title    string    `json:"title"`
	Column   string    `json:"column"`
	Chart    ChartKind `json:"chart"`
	Prefixes []string  `json:"prefixes,omitempty"`
}

// Tokenized reports whether the card counts tokens rather than whole cells.
func (c Card) Tokenized() bool { return len(c.Prefixes) > 0 }

// DefaultCards is the built-in project tracker dashboard, in display order.
func DefaultCards() []Card {
	return []Card{
		{Title: "Development Status", Column: "Development Status", Chart: ChartBar},
		{Title: "Testing Status", Column: "Testing Status", Chart: ChartBar},
		{Title: "Project Status", Column: "Project Status", Chart: ChartBar},
		{Title: "Functional Requirements Approval", Column: "Requirements Approval Status", Chart: ChartPie},
		{Title: "SME Reviews", Column: "SME Design Required?", Chart: ChartPie},
		{Title: "UAT Extensions", Column: "Extension Required?", Chart: ChartPie},
		{Title: "CMAN Packages", Column: "CMAN Package(s)", Chart: ChartBar, Prefixes: []string{"FS", "SEC"}},
		{Title: "ServiceNow Changes", Column: "ServiceNow Change(s)", Chart: ChartBar, Prefixes: []string{"CHG"}},
	}
}

// Panel is one aggregated card.
type Panel struct {
	Card    Card
	Counts  Counts
	Series  Series
	HasData bool
}

// Summary is the aggregated dashboard for one table.
type Summary struct {
	TotalRows int
	Panels    []Panel
}

// Summarize aggregates t for every card. ok is false when t has no data
// rows. A card whose column is absent still produces a panel: plain cards
// count every row as NotSpecified, tokenized cards come out empty.
func Summarize(t table.Table, cards []Card) (Summary, bool) {
	if t.Len() == 0 {
		return Summary{}, false
	}

	sum := Summary{TotalRows: t.Len(), Panels: make([]Panel, 0, len(cards))}
	for _, card := range cards {
		col := t.Column(card.Column)

		var counts Counts
		if card.Tokenized() {
			counts = CountTokens(t.Rows, col, card.Prefixes)
		} else {
			counts = CountValues(t.Rows, col)
		}

		series, ok := BuildSeries(counts)
		sum.Panels = append(sum.Panels, Panel{
			Card:    card,
			Counts:  counts,
			Series:  series,
			HasData: ok,
		})
	}
	return sum, true
}

// ValidateCards returns one error per malformed card.
func ValidateCards(cards []Card) []error {
	var errs []error
	seen := make(map[string]bool, len(cards))
	for i, c := range cards {
		if c.Title == "" {
			errs = append(errs, fmt.Errorf("cards[%d]: title is empty", i))
		}
		if c.Column == "" {
			errs = append(errs, fmt.Errorf("cards[%d]: column is empty", i))
		}
		if !c.Chart.Valid() {
			errs = append(errs, fmt.Errorf("cards[%d]: unknown chart %q (want bar|pie)", i, c.Chart))
		}
		for j, p := range c.Prefixes {
			if p == "" {
				errs = append(errs, fmt.Errorf("cards[%d].prefixes[%d]: empty prefix matches every token", i, j))
			}
		}
		if c.Title != "" && seen[c.Title] {
			errs = append(errs, fmt.Errorf("cards[%d]: duplicate title %q", i, c.Title))
		}
		seen[c.Title] = true
	}
	return errs
}
