package render

import (
	"encoding/json"
	"io"

	"statusboard/internal/stats"
)

// CardJSON is the machine-readable form of one card. Percentages are left
// to the consumer; they derive from Values.
type CardJSON struct {
	Title  string          `json:"title"`
	Column string          `json:"column"`
	Chart  stats.ChartKind `json:"chart"`
	Total  int             `json:"total"`
	Labels []string        `json:"labels"`
	Values []int           `json:"values"`
}

// DashboardJSON is the machine-readable form of a summary.
type DashboardJSON struct {
	TotalRows int        `json:"total_rows"`
	Cards     []CardJSON `json:"cards"`
}

// NewDashboardJSON converts sum. Cards without data carry empty, non-null
// labels and values.
func NewDashboardJSON(sum stats.Summary) DashboardJSON {
	out := DashboardJSON{TotalRows: sum.TotalRows, Cards: make([]CardJSON, 0, len(sum.Panels))}
	for _, p := range sum.Panels {
		c := CardJSON{
			Title:  p.Card.Title,
			Column: p.Card.Column,
			Chart:  p.Card.Chart,
			Total:  p.Series.Total(),
			Labels: p.Series.Labels,
			Values: p.Series.Values,
		}
		if c.Labels == nil {
			c.Labels = []string{}
		}
		if c.Values == nil {
			c.Values = []int{}
		}
		out.Cards = append(out.Cards, c)
	}
	return out
}

// JSON writes sum as indented JSON.
func JSON(w io.Writer, sum stats.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDashboardJSON(sum))
}
