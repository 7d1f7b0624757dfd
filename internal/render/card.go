// Package render draws dashboard cards and data tables for a terminal, and
// encodes them as JSON for other consumers.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"statusboard/internal/stats"
)

// NoData is shown in place of a chart with nothing to draw.
const NoData = "No data"

const (
	minWidth    = 32
	maxLabelW   = 28
	legendGap   = 2
	defaultCard = 60
)

// palette cycles across the points of a chart.
var palette = []lipgloss.Color{"#36A2EB", "#4BC0C0", "#9966FF", "#FF9F40", "#FF6384"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func colorAt(i int) lipgloss.Color { return palette[i%len(palette)] }

// Card draws one chart card of roughly width columns: a "Title (Total: N)"
// heading, the chart, and a "count (pct%)" figure per label.
func Card(title string, s stats.Series, kind stats.ChartKind, width int) string {
	if width <= 0 {
		width = defaultCard
	}
	if width < minWidth {
		width = minWidth
	}

	head := titleStyle.Render(fmt.Sprintf("%s (Total: %d)", title, s.Total()))
	pct, ok := stats.Percentages(s)
	if !ok {
		return cardStyle.Render(head + "\n" + dimStyle.Render(NoData))
	}

	inner := width - 4 // border + padding
	labelW := labelWidth(s.Labels, inner)

	var body string
	if kind == stats.ChartPie {
		body = pieStrip(s, inner) + "\n" + legend(s, pct, labelW)
	} else {
		body = bars(s, pct, labelW, inner)
	}
	return cardStyle.Render(head + "\n" + body)
}

func labelWidth(labels []string, inner int) int {
	w := 0
	for _, l := range labels {
		if n := lipgloss.Width(l); n > w {
			w = n
		}
	}
	if w > maxLabelW {
		w = maxLabelW
	}
	if w > inner/2 {
		w = inner / 2
	}
	return w
}

// bars draws one horizontal bar per point, scaled to the largest value.
func bars(s stats.Series, pct []float64, labelW, inner int) string {
	figures := make([]string, s.Len())
	figW := 0
	for i, v := range s.Values {
		figures[i] = figure(v, pct[i])
		if n := len(figures[i]); n > figW {
			figW = n
		}
	}
	barW := inner - labelW - figW - 2*legendGap
	if barW < 4 {
		barW = 4
	}

	maxV := 0
	for _, v := range s.Values {
		if v > maxV {
			maxV = v
		}
	}

	lines := make([]string, s.Len())
	for i, label := range s.Labels {
		n := int(math.Round(float64(s.Values[i]) / float64(maxV) * float64(barW)))
		if n < 1 && s.Values[i] > 0 {
			n = 1
		}
		bar := lipgloss.NewStyle().Foreground(colorAt(i)).Render(strings.Repeat("█", n))
		lines[i] = fitLabel(label, labelW) + strings.Repeat(" ", legendGap) +
			bar + strings.Repeat(" ", barW-n+legendGap) + figures[i]
	}
	return strings.Join(lines, "\n")
}

// pieStrip draws the pie as one proportional stacked strip. Segment widths
// always add up to width; every non-zero point gets at least one cell.
func pieStrip(s stats.Series, width int) string {
	widths := segmentWidths(s.Values, width)
	var b strings.Builder
	for i, n := range widths {
		b.WriteString(lipgloss.NewStyle().Foreground(colorAt(i)).Render(strings.Repeat("█", n)))
	}
	return b.String()
}

func segmentWidths(values []int, width int) []int {
	total := 0
	for _, v := range values {
		total += v
	}
	out := make([]int, len(values))
	if total == 0 || width <= 0 {
		return out
	}
	used, largest := 0, 0
	for i, v := range values {
		n := int(math.Round(float64(v) / float64(total) * float64(width)))
		if n < 1 && v > 0 {
			n = 1
		}
		out[i] = n
		used += n
		if v >= values[largest] {
			largest = i
		}
	}
	// Rounding drift goes to the largest segment.
	out[largest] += width - used
	if out[largest] < 1 {
		out[largest] = 1
	}
	return out
}

// legend lists every point with a colour swatch matching its pie segment.
func legend(s stats.Series, pct []float64, labelW int) string {
	lines := make([]string, s.Len())
	for i, label := range s.Labels {
		swatch := lipgloss.NewStyle().Foreground(colorAt(i)).Render("■")
		lines[i] = swatch + " " + fitLabel(label, labelW) + strings.Repeat(" ", legendGap) + figure(s.Values[i], pct[i])
	}
	return strings.Join(lines, "\n")
}

func figure(v int, pct float64) string {
	return fmt.Sprintf("%d (%s%%)", v, stats.FormatPercent(pct))
}

// fitLabel pads or truncates label to exactly w cells.
func fitLabel(label string, w int) string {
	if lipgloss.Width(label) <= w {
		return label + strings.Repeat(" ", w-lipgloss.Width(label))
	}
	rs := []rune(label)
	for len(rs) > 0 && lipgloss.Width(string(rs))+1 > w {
		rs = rs[:len(rs)-1]
	}
	out := string(rs) + "…"
	return out + strings.Repeat(" ", max(0, w-lipgloss.Width(out)))
}

// Dashboard draws a summary: a row count line and every panel's card.
func Dashboard(sum stats.Summary, width int) string {
	parts := make([]string, 0, len(sum.Panels)+1)
	parts = append(parts, titleStyle.Render(fmt.Sprintf("Rows: %d", sum.TotalRows)))
	for _, p := range sum.Panels {
		parts = append(parts, Card(p.Card.Title, p.Series, p.Card.Chart, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
