// Package datadog submits statusboard metrics to Datadog.
//
// Counters and duration samples are buffered under a mutex. A background
// ticker flushes them (once a minute unless configured) and Close flushes one
// last time, so a short CLI run still delivers its numbers. Durations are
// reported as percentile gauges rather than distributions.
package datadog

import (
	"cmp"
	"context"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"statusboard/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options configures NewBackend. The zero value reports as job
// "statusboard" once a minute.
type Options struct {
	JobName    string        // tagged job:<JobName>
	Tags       []string      // extra tags, e.g. team:pmo
	FlushEvery time.Duration // <= 0 means one minute

	// Nil in production.
	now       func() time.Time
	newTicker func(time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of *datadogV2.MetricsApi that Flush calls.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend is a metrics.Backend that batches into Datadog series.
type Backend struct {
	api        metricsSubmitter
	ctx        context.Context
	baseTags   []string
	flushEvery time.Duration
	now        func() time.Time

	stop context.CancelFunc
	done chan struct{}

	mu          sync.Mutex
	opCounts    map[opKey]float64
	opDurations map[opKey][]float64
	rowCounts   map[string]float64 // format -> rows
}

// envTag is "env:<ENV>", falling back to DD_ENV, then "unknown".
func envTag(getenv func(string) string) string {
	for _, k := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// NewBackend starts a backend whose loop flushes every opts.FlushEvery.
// Credentials and site come from DD_API_KEY and DD_SITE as read by the
// Datadog client; connection problems only show up as Flush errors.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	api := opts.submitter
	if api == nil {
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	tick, now := opts.newTicker, opts.now
	if tick == nil {
		tick = time.NewTicker
	}
	if now == nil {
		now = time.Now
	}

	b := &Backend{
		api:        api,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   slices.Concat([]string{envTag(os.Getenv), "job:" + cmp.Or(opts.JobName, "statusboard")}, opts.Tags),
		flushEvery: time.Minute,
		now:        now,
		done:       make(chan struct{}),
	}
	if opts.FlushEvery > 0 {
		b.flushEvery = opts.FlushEvery
	}
	b.reset()

	loopCtx, stop := context.WithCancel(context.Background())
	b.stop = stop
	go b.run(loopCtx, tick(b.flushEvery))
	return b, nil
}

// run flushes on every tick until ctx is canceled. Flush errors are dropped;
// the next tick starts from fresh buffers either way.
func (b *Backend) run(ctx context.Context, t *time.Ticker) {
	defer close(b.done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = b.Flush()
		}
	}
}

// Close stops the flush loop and sends whatever is still buffered.
func (b *Backend) Close() error {
	b.stop()
	<-b.done
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.OpTotal:
		b.opCounts[opKeyOf(labels)] += delta

	case metrics.RowsIngestedTotal:
		format := labels["format"]
		if format == "" {
			format = "unknown"
		}
		b.rowCounts[format] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.OpDurationSeconds {
		k := opKeyOf(labels)
		b.opDurations[k] = append(b.opDurations[k], value)
	}
}

// snapshot is the buffered state detached from the backend by Flush.
type snapshot struct {
	opCounts    map[opKey]float64
	opDurations map[opKey][]float64
	rowCounts   map[string]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := snapshot{opCounts: b.opCounts, opDurations: b.opDurations, rowCounts: b.rowCounts}
	b.reset()
	return s
}

// reset installs empty buffers. Callers other than NewBackend hold b.mu.
func (b *Backend) reset() {
	b.opCounts = make(map[opKey]float64)
	b.opDurations = make(map[opKey][]float64)
	b.rowCounts = make(map[string]float64)
}

func (s snapshot) isEmpty() bool {
	return len(s.opCounts) == 0 && len(s.opDurations) == 0 && len(s.rowCounts) == 0
}

// Flush sends everything buffered since the previous Flush as one payload.
// The buffers are handed off before the request, so a failed submit loses
// that batch. Nothing is sent when nothing was recorded.
func (b *Backend) Flush() error {
	s := b.snapshotAndReset()
	if s.isEmpty() {
		return nil
	}
	body := datadogV2.MetricPayload{Series: b.buildSeries(s, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, body, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure: no locks, no network, no clock.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.opCounts)+len(s.rowCounts)+6*len(s.opDurations))

	for k, v := range s.opCounts {
		if v == 0 {
			continue
		}
		series = append(series, point("statusboard.op.total", datadogV2.METRICINTAKETYPE_COUNT, v, k.tags(b.baseTags), nowUnix))
	}

	for format, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		tags := slices.Concat(b.baseTags, []string{"format:" + format})
		series = append(series, point("statusboard.rows_ingested.total", datadogV2.METRICINTAKETYPE_COUNT, v, tags, nowUnix))
	}

	for k, samples := range s.opDurations {
		addPercentiles(&series, "statusboard.op.duration_seconds", k.tags(b.baseTags), samples, nowUnix)
	}

	return series
}

// durationGauges are the suffixes addPercentiles emits, in order. A negative
// quantile stands for a statistic that is not a percentile.
var durationGauges = []struct {
	suffix   string
	quantile float64
}{
	{".p50", 0.50},
	{".p90", 0.90},
	{".p95", 0.95},
	{".p99", 0.99},
	{".max", 1},
	{".samples", -1},
}

// addPercentiles appends one gauge per durationGauges entry. samples is
// not modified.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, tags []string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	for _, g := range durationGauges {
		v := float64(len(sorted))
		if g.quantile >= 0 {
			v = nearestRank(sorted, g.quantile)
		}
		*series = append(*series, point(metricPrefix+g.suffix, datadogV2.METRICINTAKETYPE_GAUGE, v, tags, nowUnix))
	}
}

// point is a single-sample series.
func point(metric string, kind datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   kind.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)}},
		Tags:   tags,
	}
}

// opKey groups op samples by their labels; missing labels read "unknown".
type opKey struct{ op, status string }

func opKeyOf(labels metrics.Labels) opKey {
	k := opKey{op: labels["op"], status: labels["status"]}
	if k.op == "" {
		k.op = "unknown"
	}
	if k.status == "" {
		k.status = "unknown"
	}
	return k
}

// tags returns base plus the op and status tags in a fresh slice.
func (k opKey) tags(base []string) []string {
	return slices.Concat(base, []string{"op:" + k.op, "status:" + k.status})
}

// nearestRank returns the q-quantile of sorted, q clamped to [0,1].
func nearestRank(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	last := len(sorted) - 1
	return sorted[int(math.Round(min(max(q, 0), 1)*float64(last)))]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV splits "env:prod, team:pmo" into trimmed, non-empty tags.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
