package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"statusboard/internal/config"
	"statusboard/internal/ingest"
	"statusboard/internal/metrics/datadog"
	"statusboard/internal/parser/xlsx"
	"statusboard/internal/storage"
	"statusboard/internal/storage/memory"
	"statusboard/internal/table"
)

// fakeMetricsBackend is a deterministic metrics backend used by initMetrics tests.
type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

// bufferFile collects what export writes.
type bufferFile struct {
	bytes.Buffer
	closed bool
}

func (f *bufferFile) Close() error {
	f.closed = true
	return nil
}

func trackerWorkbook() table.Workbook {
	var t table.Table
	for _, h := range []string{"Project Status", "Owner"} {
		t.Header = append(t.Header, table.Text(h))
	}
	for _, r := range [][2]string{{"On Track", "ann"}, {"At Risk", "bob"}, {"On Track", "cy"}} {
		t.Rows = append(t.Rows, table.Row{table.Text(r[0]), table.Text(r[1])})
	}
	var wb table.Workbook
	_ = wb.Add("Projects", t)
	_ = wb.Add("Empty", table.Table{Header: table.Row{table.Text("Project Status")}})
	return wb
}

// harness wires runMain to in-memory fakes. One harness shares a store
// across several runMain calls, the way separate invocations share a file.
type harness struct {
	t     *testing.T
	kv    *memory.KV
	files map[string]table.Workbook
	out   map[string]*bufferFile

	cleanups atomic.Int64
	opened   atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		kv:    memory.New(),
		files: map[string]table.Workbook{"tracker.xlsx": trackerWorkbook()},
		out:   map[string]*bufferFile{},
	}
}

func (h *harness) deps() appDeps {
	return appDeps{
		readFile: func(path string) ([]byte, error) {
			h.t.Fatalf("readFile(%q) called without -config", path)
			return nil, nil
		},
		getenv: func(string) string { return "" },
		ingest: func(path string, _ config.Parser) (table.Workbook, error) {
			wb, ok := h.files[path]
			if !ok {
				return table.Workbook{}, fmt.Errorf("open %s: no such file", path)
			}
			return wb, nil
		},
		openStore: func(context.Context, storage.Config) (storage.KV, error) {
			h.opened.Add(1)
			return h.kv, nil
		},
		createFile: func(path string) (io.WriteCloser, error) {
			f := &bufferFile{}
			h.out[path] = f
			return f, nil
		},
		initMetrics: func(context.Context, string, config.Metrics) (func(), error) {
			return func() { h.cleanups.Add(1) }, nil
		},
		now: func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local) },
	}
}

func (h *harness) run(args ...string) (code int, stdout, stderr string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code = runMain(context.Background(), args, &out, &errOut, h.deps())
	return code, out.String(), errOut.String()
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{name: "no_command", args: nil, wantStderrSub: "usage: statusboard"},
		{name: "unknown_global_flag", args: []string{"-nope"}, wantStderrSub: "flag provided but not defined"},
		{name: "unknown_command", args: []string{"chart"}, wantStderrSub: `unknown command "chart"`},
		{name: "stats_missing_in", args: []string{"stats"}, wantStderrSub: "missing -in"},
		{name: "stats_bad_format", args: []string{"stats", "-in", "a.csv", "-format", "yaml"}, wantStderrSub: `unknown -format "yaml"`},
		{name: "stats_narrow_width", args: []string{"stats", "-in", "a.csv", "-width", "3"}, wantStderrSub: "-width must be >= 10"},
		{name: "save_missing_name", args: []string{"save", "-in", "a.csv"}, wantStderrSub: "missing -name"},
		{name: "show_missing_name", args: []string{"show"}, wantStderrSub: "usage: statusboard show"},
		{name: "export_needs_one_source", args: []string{"export"}, wantStderrSub: "exactly one of -in or -snapshot"},
		{name: "export_both_sources", args: []string{"export", "-in", "a.csv", "-snapshot", "A"}, wantStderrSub: "exactly one of -in or -snapshot"},
		{name: "positional_argument", args: []string{"list", "extra"}, wantStderrSub: "unexpected arguments: extra"},
		{name: "unknown_subcommand_flag", args: []string{"delete", "-force"}, wantStderrSub: "flag provided but not defined"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer

			// Each seam fatals if called: usage failures short-circuit before
			// any side effect.
			code := runMain(context.Background(), tc.args, &stdout, &stderr, appDeps{
				readFile: func(string) ([]byte, error) {
					t.Fatalf("readFile must not be called on usage errors")
					return nil, nil
				},
				getenv: func(string) string { return "" },
				ingest: func(string, config.Parser) (table.Workbook, error) {
					t.Fatalf("ingest must not be called on usage errors")
					return table.Workbook{}, nil
				},
				openStore: func(context.Context, storage.Config) (storage.KV, error) {
					t.Fatalf("openStore must not be called on usage errors")
					return nil, nil
				},
				initMetrics: func(context.Context, string, config.Metrics) (func(), error) {
					t.Fatalf("initMetrics must not be called on usage errors")
					return func() {}, nil
				},
			})

			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_ConfigMetricsRun_FullFlow(t *testing.T) {
	t.Parallel()

	// Error precedence: read -> parse -> validate -> initMetrics -> run.
	// Cleanup runs exactly once whenever initMetrics succeeded.
	tests := []struct {
		name             string
		raw              string
		readErr          error
		initMetricsErr   error
		in               string
		wantCode         int
		wantStderrSub    string
		wantStdoutSub    string
		wantInitCalls    int64
		wantCleanupCalls int64
	}{
		{
			name:          "read_config_error",
			readErr:       errors.New("no such file"),
			wantCode:      1,
			wantStderrSub: "read config: no such file",
		},
		{
			name:          "parse_config_error",
			raw:           `{"job":`,
			wantCode:      1,
			wantStderrSub: "parse config:",
		},
		{
			name:          "unknown_config_key",
			raw:           `{"jobs":"x"}`,
			wantCode:      1,
			wantStderrSub: "parse config:",
		},
		{
			name:          "invalid_config",
			raw:           `{"storage":{"kind":"nope","dsn":"x"}}`,
			wantCode:      1,
			wantStderrSub: "configuration is invalid",
		},
		{
			name:           "init_metrics_error",
			raw:            `{"job":"job1"}`,
			initMetricsErr: errors.New("metrics unavailable"),
			wantCode:       1,
			wantStderrSub:  "init metrics: metrics unavailable",
			wantInitCalls:  1,
		},
		{
			name:             "run_error_runs_cleanup",
			raw:              `{"job":"job1"}`,
			in:               "missing.csv",
			wantCode:         1,
			wantStderrSub:    "stats: open missing.csv",
			wantInitCalls:    1,
			wantCleanupCalls: 1,
		},
		{
			name:             "success",
			raw:              `{"job":"job1"}`,
			wantCode:         0,
			wantStdoutSub:    "Rows: 3",
			wantInitCalls:    1,
			wantCleanupCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			var initCalls, cleanupCalls atomic.Int64

			deps := h.deps()
			deps.readFile = func(path string) ([]byte, error) {
				if path != "cfg.json" {
					t.Fatalf("readFile path=%q, want %q", path, "cfg.json")
				}
				if tc.readErr != nil {
					return nil, tc.readErr
				}
				return []byte(tc.raw), nil
			}
			deps.initMetrics = func(_ context.Context, job string, _ config.Metrics) (func(), error) {
				initCalls.Add(1)
				if job != "job1" {
					t.Fatalf("job=%q, want %q", job, "job1")
				}
				if tc.initMetricsErr != nil {
					return func() {}, tc.initMetricsErr
				}
				return func() { cleanupCalls.Add(1) }, nil
			}

			in := tc.in
			if in == "" {
				in = "tracker.xlsx"
			}
			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), []string{"-config", "cfg.json", "stats", "-in", in}, &stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if tc.wantStdoutSub != "" {
				if !strings.Contains(stdout.String(), tc.wantStdoutSub) {
					t.Fatalf("stdout=%q, want contains %q", stdout.String(), tc.wantStdoutSub)
				}
			} else if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
			if got := initCalls.Load(); got != tc.wantInitCalls {
				t.Fatalf("initMetrics calls=%d, want %d", got, tc.wantInitCalls)
			}
			if got := cleanupCalls.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}
		})
	}
}

func TestRunMain_Validate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	deps := h.deps()
	deps.readFile = func(string) ([]byte, error) {
		return []byte(`{"storage":{"kind":"memory"},"dashboard":{"cards":[]}}`), nil
	}
	deps.initMetrics = func(context.Context, string, config.Metrics) (func(), error) {
		t.Fatalf("validate must not init metrics")
		return func() {}, nil
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-config", "c.json", "validate"}, &stdout, &stderr, deps)
	if code != 0 {
		t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
	}
	if got := stdout.String(); got != "configuration is valid\n" {
		t.Fatalf("stdout=%q", got)
	}
	// Warnings are printed but do not fail.
	for _, want := range []string{"warning: storage.kind:", "warning: dashboard.cards:"} {
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("stderr=%q, want contains %q", stderr.String(), want)
		}
	}
}

func TestRunMain_EnvOverridesStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	deps := h.deps()
	deps.getenv = func(k string) string {
		if k == "STATUSBOARD_STORAGE_KIND" {
			return "memory"
		}
		return ""
	}
	var got storage.Config
	deps.openStore = func(_ context.Context, cfg storage.Config) (storage.KV, error) {
		got = cfg
		return h.kv, nil
	}

	var stdout, stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"list"}, &stdout, &stderr, deps); code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	if got.Kind != "memory" {
		t.Fatalf("storage kind=%q, want memory", got.Kind)
	}
}

func TestRunMain_MetricsBackendFromEnvWithoutConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	deps := h.deps()
	deps.getenv = func(k string) string {
		if k == "METRICS_BACKEND" {
			return "datadog"
		}
		return ""
	}
	var got config.Metrics
	deps.initMetrics = func(_ context.Context, _ string, m config.Metrics) (func(), error) {
		got = m
		return func() {}, nil
	}

	var stdout, stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"sheets", "-in", "tracker.xlsx"}, &stdout, &stderr, deps); code != 0 {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
	if got.Backend != "datadog" {
		t.Fatalf("metrics backend=%q, want METRICS_BACKEND applied", got.Backend)
	}
}

func TestRunMain_SheetsAndTable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	code, stdout, stderr := h.run("sheets", "-in", "tracker.xlsx")
	if code != 0 {
		t.Fatalf("sheets code=%d stderr=%q", code, stderr)
	}
	if stdout != "Projects\nEmpty\n" {
		t.Fatalf("sheets stdout=%q", stdout)
	}

	code, stdout, stderr = h.run("table", "-in", "tracker.xlsx", "-q", "BOB")
	if code != 0 {
		t.Fatalf("table code=%d stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, "At Risk") || strings.Contains(stdout, "On Track") {
		t.Fatalf("table -q BOB stdout=%q, want only the At Risk row", stdout)
	}

	code, stdout, _ = h.run("table", "-in", "tracker.xlsx", "-sheet", "Empty")
	if code != 0 || !strings.Contains(stdout, "No data rows found") {
		t.Fatalf("table empty sheet code=%d stdout=%q", code, stdout)
	}

	code, _, stderr = h.run("table", "-in", "tracker.xlsx", "-sheet", "Nope")
	if code != 1 || !strings.Contains(stderr, `unknown sheet "Nope"`) {
		t.Fatalf("unknown sheet code=%d stderr=%q", code, stderr)
	}
	if h.opened.Load() != 0 {
		t.Fatalf("store opened %d times by read-only commands", h.opened.Load())
	}
}

func TestRunMain_StatsJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	code, stdout, stderr := h.run("stats", "-in", "tracker.xlsx", "-format", "json")
	if code != 0 {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}

	var got struct {
		TotalRows int `json:"total_rows"`
		Cards     []struct {
			Title  string   `json:"title"`
			Labels []string `json:"labels"`
			Values []int    `json:"values"`
		} `json:"cards"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode stdout: %v\n%s", err, stdout)
	}
	if got.TotalRows != 3 {
		t.Fatalf("total_rows=%d, want 3", got.TotalRows)
	}

	counts := map[string]int{}
	for _, c := range got.Cards {
		if c.Title != "Project Status" {
			continue
		}
		for i, l := range c.Labels {
			counts[l] = c.Values[i]
		}
	}
	if counts["On Track"] != 2 || counts["At Risk"] != 1 || len(counts) != 2 {
		t.Fatalf("Project Status counts=%v", counts)
	}
}

func TestRunMain_StatsNoRows(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	code, stdout, _ := h.run("stats", "-in", "tracker.xlsx", "-q", "nothing matches this")
	if code != 0 || stdout != "No data\n" {
		t.Fatalf("text code=%d stdout=%q", code, stdout)
	}

	code, stdout, _ = h.run("stats", "-in", "tracker.xlsx", "-sheet", "Empty", "-format", "json")
	if code != 0 {
		t.Fatalf("json code=%d", code)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["total_rows"] != float64(0) {
		t.Fatalf("total_rows=%v, want 0", got["total_rows"])
	}
	if cards, ok := got["cards"].([]any); !ok || len(cards) != 0 {
		t.Fatalf("cards=%v, want []", got["cards"])
	}
}

func TestRunMain_SnapshotLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	code, stdout, _ := h.run("list")
	if code != 0 || stdout != "no saved snapshots\n" {
		t.Fatalf("empty list code=%d stdout=%q", code, stdout)
	}

	code, stdout, stderr := h.run("save", "-in", "tracker.xlsx", "-name", "Q2")
	if code != 0 {
		t.Fatalf("save code=%d stderr=%q", code, stderr)
	}
	if want := `saved "Q2" (3 rows) at 2024-05-01 09:30:00`; !strings.Contains(stdout, want) {
		t.Fatalf("save stdout=%q, want contains %q", stdout, want)
	}

	// Save again under the same name: replaced, not duplicated.
	if code, _, stderr = h.run("save", "-in", "tracker.xlsx", "-name", "Q2"); code != 0 {
		t.Fatalf("resave code=%d stderr=%q", code, stderr)
	}

	code, stdout, _ = h.run("list")
	if code != 0 || strings.Count(stdout, "Q2") != 1 || !strings.Contains(stdout, "NAME") {
		t.Fatalf("list code=%d stdout=%q", code, stdout)
	}

	code, stdout, stderr = h.run("show", "-name", "Q2", "-q", "ann")
	if code != 0 {
		t.Fatalf("show code=%d stderr=%q", code, stderr)
	}
	if !strings.HasPrefix(stdout, "Snapshot: Q2\n") || !strings.Contains(stdout, "Rows: 1") {
		t.Fatalf("show stdout=%q", stdout)
	}

	code, _, stderr = h.run("show", "-name", "Q3")
	if code != 1 || !strings.Contains(stderr, `no snapshot named "Q3"`) {
		t.Fatalf("show missing code=%d stderr=%q", code, stderr)
	}

	code, stdout, _ = h.run("delete", "-name", "Q2")
	if code != 0 || stdout != "deleted \"Q2\"\n" {
		t.Fatalf("delete code=%d stdout=%q", code, stdout)
	}

	// Deleting an absent name is a no-op, not a failure.
	code, stdout, _ = h.run("delete", "-name", "Q2")
	if code != 0 || stdout != "no snapshot named \"Q2\"\n" {
		t.Fatalf("second delete code=%d stdout=%q", code, stdout)
	}

	raw, ok, err := h.kv.Get(context.Background(), "saved_dashboards")
	if err != nil || !ok || raw != "[]" {
		t.Fatalf("stored=%q,%v,%v want [] after deleting the last snapshot", raw, ok, err)
	}
	if h.cleanups.Load() != 8 {
		t.Fatalf("metrics cleanup calls=%d, want one per run", h.cleanups.Load())
	}
}

func TestRunMain_StoreOpenError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	deps := h.deps()
	deps.openStore = func(context.Context, storage.Config) (storage.KV, error) {
		return nil, errors.New("connection refused")
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"list"}, &stdout, &stderr, deps)
	if code != 1 {
		t.Fatalf("code=%d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "list: open storage file: connection refused") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}

func TestRunMain_Export(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	code, stdout, stderr := h.run("export", "-in", "tracker.xlsx")
	if code != 0 {
		t.Fatalf("export code=%d stderr=%q", code, stderr)
	}
	if stdout != "wrote tracker_modified.xlsx\n" {
		t.Fatalf("stdout=%q", stdout)
	}
	f := h.out["tracker_modified.xlsx"]
	if f == nil || !f.closed {
		t.Fatalf("export file not written and closed: %#v", h.out)
	}
	wb, err := xlsx.NewDecoder().Decode(bytes.NewReader(f.Bytes()))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	got, ok := wb.Sheet("Projects")
	if !ok || got.Len() != 3 || got.Cell(1, 1).String() != "bob" {
		t.Fatalf("exported sheet=%v ok=%v", got, ok)
	}

	if code, _, stderr = h.run("save", "-in", "tracker.xlsx", "-name", "Board A"); code != 0 {
		t.Fatalf("save code=%d stderr=%q", code, stderr)
	}
	code, stdout, stderr = h.run("export", "-snapshot", "Board A", "-out", "out/a.xlsx")
	if code != 0 {
		t.Fatalf("export snapshot code=%d stderr=%q", code, stderr)
	}
	if stdout != "wrote out/a.xlsx\n" || h.out["out/a.xlsx"] == nil {
		t.Fatalf("stdout=%q files=%v", stdout, h.out)
	}
}

func TestRunMain_RealIngestCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.csv")
	csv := "Project Status,CMAN Package(s)\nOn Track,\"FS-1, sec-2\"\nAt Risk,SEC-3\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h := newHarness(t)
	deps := h.deps()
	deps.ingest = ingest.File

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"stats", "-in", path, "-format", "json"}, &stdout, &stderr, deps)
	if code != 0 {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"total_rows": 2`) {
		t.Fatalf("stdout=%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"FS-1"`) || strings.Contains(stdout.String(), `"sec-2"`) {
		t.Fatalf("token counts wrong: %s", stdout.String())
	}
}

// The tests below swap package-level seams and must not run in parallel.

func TestInitMetrics_None_DoesNotMutateGlobalState(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()

	setMetricsBackend = func(any) {
		t.Fatalf("setMetricsBackend must not be called for none/noop")
	}

	for _, backend := range []string{"", "none", "noop", " NONE "} {
		cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: backend})
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v, want nil", backend, err)
		}
		if cleanup == nil {
			t.Fatalf("initMetrics(%q) cleanup=nil, want non-nil", backend)
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}

	var (
		newCalls atomic.Int64
		setCalls atomic.Int64
		gotOpts  datadog.Options
	)

	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	oldLog := logPrintf
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
		logPrintf = oldLog
	}()

	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		newCalls.Add(1)
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(any) { setCalls.Add(1) }

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), "jobA", config.Metrics{
		Backend:           "datadog",
		Tags:              []string{"team:pmo"},
		FlushEverySeconds: 15,
	})
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}

	if gotOpts.JobName != "jobA" {
		t.Fatalf("JobName=%q, want %q", gotOpts.JobName, "jobA")
	}
	if len(gotOpts.Tags) != 1 || gotOpts.Tags[0] != "team:pmo" {
		t.Fatalf("Tags=%v, want [team:pmo]", gotOpts.Tags)
	}
	if gotOpts.FlushEvery != 15*time.Second {
		t.Fatalf("FlushEvery=%v, want 15s", gotOpts.FlushEvery)
	}
	if newCalls.Load() != 1 || setCalls.Load() != 1 {
		t.Fatalf("new calls=%d set calls=%d, want 1 and 1", newCalls.Load(), setCalls.Load())
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_DefaultJobName(t *testing.T) {
	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
	}()

	var job string
	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		job = opts.JobName
		return &fakeMetricsBackend{}, nil
	}
	setMetricsBackend = func(any) {}

	cleanup, err := initMetrics(context.Background(), "", config.Metrics{Backend: "dd"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	cleanup()
	if job != "statusboard" {
		t.Fatalf("JobName=%q, want statusboard", job)
	}
}

func TestInitMetrics_Datadog_ConstructorError(t *testing.T) {
	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
	}()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) {
		return nil, errors.New("missing DD_API_KEY")
	}
	setMetricsBackend = func(any) { t.Fatalf("setMetricsBackend must not be called when construction fails") }

	cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: "datadog"})
	if err == nil || !strings.Contains(err.Error(), "datadog: missing DD_API_KEY") {
		t.Fatalf("err=%v, want wrapped constructor error", err)
	}
	cleanup()
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	oldLog := logPrintf
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
		logPrintf = oldLog
	}()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(any) {}

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: "dd"})
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}
	cleanup()

	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if !strings.Contains(logged.String(), "metrics: datadog close error: flush failed") {
		t.Fatalf("log=%q, want close error", logged.String())
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: "nope"})
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()

	if !strings.Contains(err.Error(), `unknown metrics backend "nope"`) || !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%q", err.Error())
	}
}

func BenchmarkRunMain_StatsNoIO(b *testing.B) {
	wb := trackerWorkbook()
	deps := appDeps{
		getenv: func(string) string { return "" },
		ingest: func(string, config.Parser) (table.Workbook, error) { return wb, nil },
		initMetrics: func(context.Context, string, config.Metrics) (func(), error) {
			return func() {}, nil
		},
	}
	args := []string{"stats", "-in", "tracker.xlsx", "-format", "json"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var stdout, stderr bytes.Buffer
		if code := runMain(context.Background(), args, &stdout, &stderr, deps); code != 0 {
			b.Fatalf("code=%d stderr=%q", code, stderr.String())
		}
	}
}
