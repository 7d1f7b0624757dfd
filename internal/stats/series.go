package stats

import (
	"fmt"
	"sort"
)

// Series is a chart-ready view of Counts: parallel labels and values,
// ascending by value.
type Series struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Len is the number of points.
func (s Series) Len() int { return len(s.Labels) }

// Total sums Values.
func (s Series) Total() int {
	total := 0
	for _, v := range s.Values {
		total += v
	}
	return total
}

// BuildSeries sorts c's entries ascending by count. The sort is stable over
// first-seen order, so ties keep the order in which rows introduced them.
// ok is false when the counts sum to zero; there is nothing to chart.
func BuildSeries(c Counts) (s Series, ok bool) {
	if c.Total() == 0 {
		return Series{}, false
	}

	type entry struct {
		label string
		n     int
	}
	entries := make([]entry, 0, c.Len())
	for _, label := range c.order {
		entries = append(entries, entry{label: label, n: c.n[label]})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].n < entries[j].n })

	s.Labels = make([]string, len(entries))
	s.Values = make([]int, len(entries))
	for i, e := range entries {
		s.Labels[i] = e.label
		s.Values[i] = e.n
	}
	return s, true
}

// Percentages returns value[i]/sum*100 for every point. ok is false when the
// series sums to zero, instead of producing NaN or Inf.
func Percentages(s Series) ([]float64, bool) {
	total := s.Total()
	if total == 0 {
		return nil, false
	}
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = float64(v) / float64(total) * 100
	}
	return out, true
}

// FormatPercent renders p with one decimal place ("33.3").
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f", p)
}
