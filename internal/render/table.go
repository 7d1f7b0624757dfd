package render

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	tbl "statusboard/internal/table"
)

const (
	// NoDataAvailable is drawn for a table with neither header nor rows.
	NoDataAvailable = "No data available"
	// NoDataRows is drawn under the header of a table without rows.
	NoDataRows = "No data rows found"
	// Missing fills cells a short row does not have.
	Missing = "—"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	oddRowStyle = cellStyle.Copy().Faint(true)
)

// Headers returns the display header for t: blank header cells become
// "Column N", and columns that only some rows reach get one too.
func Headers(t tbl.Table) []string {
	width := t.Width()
	for _, r := range t.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([]string, width)
	for i := range out {
		if h := t.Header.At(i); !h.IsEmpty() {
			out[i] = h.String()
		} else {
			out[i] = "Column " + strconv.Itoa(i+1)
		}
	}
	return out
}

// Table draws t with a header row. Rows shorter than the header are padded
// with Missing; empty cells stay blank.
func Table(t tbl.Table) string {
	if t.Width() == 0 && t.Len() == 0 {
		return dimStyle.Render(NoDataAvailable)
	}
	headers := Headers(t)

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(headers))
		for c := range row {
			switch {
			case c < len(r):
				row[c] = r[c].String()
			case c < t.Width():
				row[c] = Missing
			}
		}
		rows[i] = row
	}

	out := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return oddRowStyle
			default:
				return cellStyle
			}
		}).
		Render()

	if t.Len() == 0 {
		out += "\n" + dimStyle.Render(NoDataRows)
	}
	return out
}
