package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"statusboard/internal/render"
	"statusboard/internal/workspace"
)

const defaultWidth = 60

// cmdOpts is the union of every subcommand's flags.
type cmdOpts struct {
	in       string
	sheet    string
	query    string
	name     string
	snapshot string
	out      string
	format   string
	width    int
}

type command struct {
	usage string
	flags func(fs *flag.FlagSet, o *cmdOpts)
	check func(o *cmdOpts) error
	run   func(ctx context.Context, a *app, o *cmdOpts) error
}

var errUsage = errors.New("usage")

// parse reads args into a cmdOpts. Errors have already been reported on
// stderr when it returns.
func (c command) parse(name string, args []string, stderr io.Writer) (*cmdOpts, error) {
	o := &cmdOpts{format: "text", width: defaultWidth}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintf(stderr, "usage: statusboard %s %s\n", name, c.usage) }
	if c.flags != nil {
		c.flags(fs, o)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return nil, errUsage
	}
	if c.check != nil {
		if err := c.check(o); err != nil {
			fmt.Fprintln(stderr, err)
			fs.Usage()
			return nil, errUsage
		}
	}
	return o, nil
}

func inputFlags(fs *flag.FlagSet, o *cmdOpts) {
	fs.StringVar(&o.in, "in", "", "input file (.xlsx, .xlsm, .csv, .tsv, .txt, .html)")
	fs.StringVar(&o.sheet, "sheet", "", "sheet name (default: first sheet)")
}

func queryFlag(fs *flag.FlagSet, o *cmdOpts) {
	fs.StringVar(&o.query, "q", "", "only rows with a cell containing this text (case-insensitive)")
}

func formatFlags(fs *flag.FlagSet, o *cmdOpts) {
	fs.StringVar(&o.format, "format", "text", "output format: text|json")
	fs.IntVar(&o.width, "width", defaultWidth, "chart width in columns")
}

func needIn(o *cmdOpts) error {
	if strings.TrimSpace(o.in) == "" {
		return errors.New("missing -in")
	}
	return nil
}

func needName(o *cmdOpts) error {
	if strings.TrimSpace(o.name) == "" {
		return errors.New("missing -name")
	}
	return nil
}

func checkFormat(o *cmdOpts) error {
	switch o.format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown -format %q (want text|json)", o.format)
	}
	if o.width < 10 {
		return fmt.Errorf("-width must be >= 10, got %d", o.width)
	}
	return nil
}

func all(checks ...func(*cmdOpts) error) func(*cmdOpts) error {
	return func(o *cmdOpts) error {
		for _, c := range checks {
			if err := c(o); err != nil {
				return err
			}
		}
		return nil
	}
}

var commands = map[string]command{
	"sheets": {
		usage: "-in F",
		flags: func(fs *flag.FlagSet, o *cmdOpts) { fs.StringVar(&o.in, "in", "", "input file") },
		check: needIn,
		run:   runSheets,
	},
	"stats": {
		usage: "-in F [-sheet S] [-q Q] [-format text|json] [-width N]",
		flags: func(fs *flag.FlagSet, o *cmdOpts) {
			inputFlags(fs, o)
			queryFlag(fs, o)
			formatFlags(fs, o)
		},
		check: all(needIn, checkFormat),
		run:   runStats,
	},
	"table": {
		usage: "-in F [-sheet S] [-q Q]",
		flags: func(fs *flag.FlagSet, o *cmdOpts) {
			inputFlags(fs, o)
			queryFlag(fs, o)
		},
		check: needIn,
		run:   runTable,
	},
	"save": {
		usage: "-in F [-sheet S] -name N",
		flags: func(fs *flag.FlagSet, o *cmdOpts) {
			inputFlags(fs, o)
			fs.StringVar(&o.name, "name", "", "snapshot name")
		},
		check: all(needIn, needName),
		run:   runSave,
	},
	"list": {
		run: runList,
	},
	"show": {
		usage: "-name N [-q Q] [-format text|json] [-width N]",
		flags: func(fs *flag.FlagSet, o *cmdOpts) {
			fs.StringVar(&o.name, "name", "", "snapshot name")
			queryFlag(fs, o)
			formatFlags(fs, o)
		},
		check: all(needName, checkFormat),
		run:   runShow,
	},
	"delete": {
		usage: "-name N",
		flags: func(fs *flag.FlagSet, o *cmdOpts) { fs.StringVar(&o.name, "name", "", "snapshot name") },
		check: needName,
		run:   runDelete,
	},
	"export": {
		usage: "(-in F [-sheet S] | -snapshot N) [-out P]",
		flags: func(fs *flag.FlagSet, o *cmdOpts) {
			inputFlags(fs, o)
			fs.StringVar(&o.snapshot, "snapshot", "", "export a saved snapshot instead of a file")
			fs.StringVar(&o.out, "out", "", "output path (default: <input>_modified.xlsx)")
		},
		check: func(o *cmdOpts) error {
			hasIn, hasSnap := strings.TrimSpace(o.in) != "", strings.TrimSpace(o.snapshot) != ""
			if hasIn == hasSnap {
				return errors.New("exactly one of -in or -snapshot is required")
			}
			return nil
		},
		run: runExport,
	},
	"validate": {},
}

func runSheets(_ context.Context, a *app, o *cmdOpts) error {
	s, err := a.session(o.in, "")
	if err != nil {
		return err
	}
	for _, name := range s.SheetNames() {
		fmt.Fprintln(a.stdout, name)
	}
	return nil
}

func runStats(_ context.Context, a *app, o *cmdOpts) error {
	s, err := a.session(o.in, o.sheet)
	if err != nil {
		return err
	}
	s.SetQuery(o.query)
	return a.writeSummary(s, o.format, o.width)
}

func runTable(_ context.Context, a *app, o *cmdOpts) error {
	s, err := a.session(o.in, o.sheet)
	if err != nil {
		return err
	}
	s.SetQuery(o.query)
	t, _ := s.Visible()
	_, err = fmt.Fprintln(a.stdout, render.Table(t))
	return err
}

func runSave(ctx context.Context, a *app, o *cmdOpts) error {
	s, err := a.session(o.in, o.sheet)
	if err != nil {
		return err
	}
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}
	snap, err := s.SaveSnapshot(ctx, reg, o.name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "saved %q (%d rows) at %s\n", snap.Name, snap.Data.Len(), snap.SavedAt)
	return err
}

func runList(ctx context.Context, a *app, _ *cmdOpts) error {
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}
	snaps := reg.List()
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(a.stdout, "no saved snapshots")
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSAVED AT\tROWS")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Name, s.SavedAt, s.Data.Len())
	}
	return tw.Flush()
}

// snapshotSession returns a session with the named snapshot on display.
func (a *app) snapshotSession(ctx context.Context, name string) (*workspace.Session, error) {
	reg, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	s := workspace.New(nil)
	if err := s.LoadSnapshot(reg, name); err != nil {
		return nil, err
	}
	return s, nil
}

func runShow(ctx context.Context, a *app, o *cmdOpts) error {
	s, err := a.snapshotSession(ctx, o.name)
	if err != nil {
		return err
	}
	s.SetQuery(o.query)
	if o.format == "text" {
		fmt.Fprintf(a.stdout, "Snapshot: %s\n", o.name)
	}
	return a.writeSummary(s, o.format, o.width)
}

func runDelete(ctx context.Context, a *app, o *cmdOpts) error {
	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}
	s := workspace.New(nil)
	deleted, err := s.DeleteSnapshot(ctx, reg, o.name)
	if err != nil {
		return err
	}
	if !deleted {
		_, err = fmt.Fprintf(a.stdout, "no snapshot named %q\n", o.name)
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "deleted %q\n", o.name)
	return err
}

func runExport(ctx context.Context, a *app, o *cmdOpts) error {
	var (
		s   *workspace.Session
		err error
	)
	if o.snapshot != "" {
		s, err = a.snapshotSession(ctx, o.snapshot)
	} else {
		s, err = a.session(o.in, o.sheet)
	}
	if err != nil {
		return err
	}

	out := o.out
	if out == "" {
		out = s.ExportName()
	}
	f, err := a.deps.createFile(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := s.Export(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	_, err = fmt.Fprintf(a.stdout, "wrote %s\n", out)
	return err
}
