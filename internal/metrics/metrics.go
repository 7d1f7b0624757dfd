// Package metrics is the process-wide metrics facade. Callers record through
// the package functions; a concrete backend (Datadog, or the nop default) is
// installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by statusboard.
const (
	RowsIngestedTotal = "statusboard_rows_ingested_total"
	OpTotal           = "statusboard_op_total"
	OpDurationSeconds = "statusboard_op_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the installed backend to submit what it has buffered.
func Flush() error { return current().Flush() }

// RecordOp records one completed operation: a count and a duration, both
// labelled with op and status ("ok" or "error").
func RecordOp(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"op": op, "status": status}
	IncCounter(OpTotal, 1, l)
	ObserveHistogram(OpDurationSeconds, time.Since(start).Seconds(), l)
}

// RowsIngested counts data rows decoded from a source of the given format.
func RowsIngested(format string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsIngestedTotal, float64(n), Labels{"format": format})
}
