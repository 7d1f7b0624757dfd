// Command statusboard summarizes project-tracker spreadsheets and keeps named
// snapshots of them.
//
//	statusboard [-config path] [-v] <command> [flags]
//
// Commands: sheets, stats, table, save, list, show, delete, export, validate.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"statusboard/internal/config"
	"statusboard/internal/ingest"
	"statusboard/internal/metrics"
	"statusboard/internal/metrics/datadog"
	"statusboard/internal/render"
	"statusboard/internal/snapshot"
	"statusboard/internal/storage"
	"statusboard/internal/table"
	"statusboard/internal/workspace"

	// register all backends with the storage factory; the config picks one.
	_ "statusboard/internal/storage/all"
)

const usageLine = "usage: statusboard [-config path] [-v] <sheets|stats|table|save|list|show|delete|export|validate> [flags]"

// appDeps are the side-effecting collaborators of runMain; tests replace them.
type appDeps struct {
	readFile    func(path string) ([]byte, error)
	getenv      func(key string) string
	ingest      func(path string, p config.Parser) (table.Workbook, error)
	openStore   func(ctx context.Context, cfg storage.Config) (storage.KV, error)
	createFile  func(path string) (io.WriteCloser, error)
	initMetrics func(ctx context.Context, job string, m config.Metrics) (func(), error)
	now         func() time.Time
}

func defaultDeps() appDeps {
	return appDeps{
		readFile:    os.ReadFile,
		getenv:      os.Getenv,
		ingest:      ingest.File,
		openStore:   storage.New,
		createFile:  func(path string) (io.WriteCloser, error) { return os.Create(path) },
		initMetrics: initMetrics,
		now:         time.Now,
	}
}

func main() {
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain returns the process exit code: 0 ok, 1 failure, 2 usage.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("statusboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "config JSON path (default: built-in dashboard, file storage)")
	verbose := fs.Bool("v", false, "enable verbose logs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, usageLine)
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n%s\n", name, usageLine)
		return 2
	}
	opts, err := cmd.parse(name, rest, stderr)
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(*cfgPath, deps)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid\n")
		return 1
	}
	if name == "validate" {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	cleanup, err := deps.initMetrics(ctx, cfg.Job, cfg.Metrics)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	a := &app{
		cfg:     cfg,
		deps:    deps,
		stdout:  stdout,
		verbose: *verbose,
	}
	defer a.close()

	if err := cmd.run(ctx, a, opts); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

func loadConfig(path string, deps appDeps) (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(path) != "" {
		raw, err := deps.readFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = config.Decode(bytes.NewReader(raw)); err != nil {
			return config.Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	config.ApplyEnv(&cfg, deps.getenv)
	return cfg, nil
}

// app carries what every command needs. The store is opened on first use.
type app struct {
	cfg     config.Config
	deps    appDeps
	stdout  io.Writer
	verbose bool

	kv  storage.KV
	reg *snapshot.Registry
}

func (a *app) registry(ctx context.Context) (*snapshot.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	kv, err := a.deps.openStore(ctx, a.cfg.Storage.KV())
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", a.cfg.Storage.Kind, err)
	}
	a.kv = kv
	a.reg = snapshot.New(ctx, kv,
		snapshot.WithKey(a.cfg.Storage.SnapshotKey()),
		snapshot.WithClock(a.deps.now),
	)
	if a.verbose {
		logPrintf("storage: kind=%s key=%s snapshots=%d", a.cfg.Storage.Kind, a.reg.Key(), a.reg.Len())
	}
	return a.reg, nil
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
}

// session opens in and selects sheet (first sheet when empty).
func (a *app) session(in, sheet string) (*workspace.Session, error) {
	s := workspace.New(func(path string) (table.Workbook, error) {
		return a.deps.ingest(path, a.cfg.Parser)
	})
	if err := s.Open(in); err != nil {
		return nil, err
	}
	if sheet != "" {
		if err := s.SelectSheet(sheet); err != nil {
			return nil, err
		}
	}
	if a.verbose {
		logPrintf("ingest: file=%s sheet=%s import_time=%s", s.Source(), s.Sheet(), s.ImportDuration().Truncate(time.Microsecond))
	}
	return s, nil
}

func (a *app) writeSummary(s *workspace.Session, format string, width int) error {
	sum, ok := s.Summary(a.cfg.Dashboard.Cards)
	if format == "json" {
		return render.JSON(a.stdout, sum)
	}
	if !ok {
		_, err := fmt.Fprintln(a.stdout, render.NoData)
		return err
	}
	_, err := fmt.Fprintln(a.stdout, render.Dashboard(sum, width))
	return err
}

// ---- metrics ----

// metricsBackend is what initMetrics needs from a concrete backend.
type metricsBackend interface {
	Close() error
}

// Seams for tests.
var (
	logPrintf         = log.Printf
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		b, err := datadog.NewBackend(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
)

// initMetrics installs the configured backend. The returned cleanup is never
// nil and flushes the backend on shutdown.
func initMetrics(ctx context.Context, job string, m config.Metrics) (func(), error) {
	noop := func() {}
	if job == "" {
		job = "statusboard"
	}

	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       m.Tags,
			FlushEvery: time.Duration(m.FlushEverySeconds) * time.Second,
		})
		if err != nil {
			return noop, fmt.Errorf("datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog)", m.Backend)
	}
}
