// Command tractor-hours processes engine-hour export files from the command
// line: it ingests each file, normalizes and merges the records, and writes
// the fleet view as JSON, CSV, or an Excel workbook. Optionally it persists
// the result as a snapshot in a configured store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/internal/export"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics/datadog"
	"github.com/louisbat101/agtegra-tractors-hours/internal/pipeline"
	"github.com/louisbat101/agtegra-tractors-hours/internal/stats"
	"github.com/louisbat101/agtegra-tractors-hours/internal/store"

	// register all store backends with the factory.
	_ "github.com/louisbat101/agtegra-tractors-hours/internal/store/all"
)

// backendCloser is the minimal interface this command needs from a metrics
// backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability: tests inject fake backends,
// fake stores, and capture stdout/stderr.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
	OpenStore      func(ctx context.Context, cfg store.Config) (store.Store, error)
	NewKey         func() string
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	Inputs     []string
	ConfigPath string
	Format     string
	OutPath    string
	Summary    bool
	Verbose    bool

	StoreKind string
	StoreDSN  string
	Key       string

	MetricsBackend string
	TagsCSV        string
	FlushEvery     time.Duration
}

// main wires real dependencies and exits with a code.
func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		OpenStore: store.New,
		NewKey:    uuid.NewString,
	})
	os.Exit(code)
}

// run executes the command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: the batch produced no valid records.
//   - 2: configuration or I/O error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.OpenStore == nil {
		d.OpenStore = store.New
	}
	if d.NewKey == nil {
		d.NewKey = uuid.NewString
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	app := config.Default()
	if cfg.ConfigPath != "" {
		app, err = config.LoadApp(cfg.ConfigPath)
		if err != nil {
			fmt.Fprintf(d.Stderr, "%v\n", err)
			return 2
		}
		issues := config.ValidateApp(app)
		for _, iss := range issues {
			fmt.Fprintln(d.Stderr, iss.String())
		}
		if config.HasErrors(issues) {
			return 2
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch cfg.MetricsBackend {
	case "datadog", "dd":
		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		tags := append(datadog.ParseTagsCSV(cfg.TagsCSV), "tool:tractor_hours")
		if env := os.Getenv("METRICS_TAGS"); env != "" {
			tags = append(tags, datadog.ParseTagsCSV(env)...)
		}
		b, err := d.BackendFactory(ctx, "tractor_hours", tags, cfg.FlushEvery)
		if err != nil {
			fmt.Fprintf(d.Stderr, "metrics: backend init failed: %v; metrics disabled\n", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					fmt.Fprintf(d.Stderr, "metrics: close error: %v\n", err)
				}
			}()
		}
	case "", "none":
		// nop backend remains
	default:
		fmt.Fprintf(d.Stderr, "metrics: unknown backend %q; metrics disabled\n", cfg.MetricsBackend)
	}

	inputs, closeAll, err := openInputs(cfg.Inputs)
	if err != nil {
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 2
	}
	defer closeAll()

	proc := &pipeline.Processor{Options: app.Ingest}
	if cfg.Verbose {
		logger := log.New(d.Stderr, "", log.LstdFlags)
		proc.Logf = logger.Printf
	}

	res := proc.Run(inputs)
	for _, w := range res.Warnings {
		fmt.Fprintf(d.Stderr, "warning: %s\n", w)
	}
	if len(res.Records) == 0 {
		fmt.Fprintln(d.Stderr, "no valid records found in the input files")
		return 1
	}

	if cfg.StoreKind != "" {
		key := cfg.Key
		if key == "" {
			key = d.NewKey()
		}
		st, err := d.OpenStore(ctx, store.Config{Kind: cfg.StoreKind, DSN: cfg.StoreDSN})
		if err != nil {
			fmt.Fprintf(d.Stderr, "store: %v\n", err)
			return 2
		}
		defer st.Close()
		if err := st.Ensure(ctx); err != nil {
			fmt.Fprintf(d.Stderr, "store: ensure schema: %v\n", err)
			return 2
		}
		if err := st.Save(ctx, key, res.Records); err != nil {
			fmt.Fprintf(d.Stderr, "store: save snapshot: %v\n", err)
			return 2
		}
		fmt.Fprintf(d.Stderr, "saved snapshot %s (%d records)\n", key, len(res.Records))
	}

	out := d.Stdout
	if cfg.OutPath != "" {
		f, err := os.Create(cfg.OutPath)
		if err != nil {
			fmt.Fprintf(d.Stderr, "create output: %v\n", err)
			return 2
		}
		defer f.Close()
		out = f
	}

	switch cfg.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(d.Stderr, "write output: %v\n", err)
			return 2
		}
	case "csv":
		if err := export.CSV(out, res.Records); err != nil {
			fmt.Fprintf(d.Stderr, "write output: %v\n", err)
			return 2
		}
	case "xlsx":
		if err := export.Excel(out, res.Records); err != nil {
			fmt.Fprintf(d.Stderr, "write output: %v\n", err)
			return 2
		}
	}

	if cfg.Summary {
		printSummary(d.Stderr, stats.Summarize(res.Records), res.DuplicatesRemoved)
	}

	_ = metrics.Flush()
	return 0
}

// parseFlags parses arguments into a validated runConfig. It never exits the
// process; the caller decides the exit code.
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("tractor-hours", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage: %s [flags] <file.csv|file.xlsx|file.html>...\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	var ins stringList
	fs.Var(&ins, "in", "Input file; repeatable (positional arguments also work)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "App config JSON path (ingest options and defaults)")
	fs.StringVar(&cfg.Format, "format", "json", "Output format: json|csv|xlsx")
	fs.StringVar(&cfg.OutPath, "out", "", "Output file; defaults to stdout")
	fs.BoolVar(&cfg.Summary, "summary", false, "Print fleet statistics to stderr after processing")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable stage progress logs")

	fs.StringVar(&cfg.StoreKind, "store", "", "Persist the result: sqlite|postgres|mssql (empty disables)")
	fs.StringVar(&cfg.StoreDSN, "dsn", "", "Store DSN (required with -store)")
	fs.StringVar(&cfg.Key, "key", "", "Snapshot key; defaults to a random UUID")

	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", "none", "Metrics backend: datadog|none")
	fs.StringVar(&cfg.TagsCSV, "metrics-tags", "", "Extra metrics tags CSV (e.g. env:prod,team:ops)")
	fs.DurationVar(&cfg.FlushEvery, "metrics-flush", time.Minute, "Metrics flush interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	cfg.Inputs = append([]string(ins), fs.Args()...)
	if len(cfg.Inputs) == 0 {
		return runConfig{}, errors.New("no input files given (use -in or positional arguments)")
	}
	switch cfg.Format {
	case "json", "csv", "xlsx":
	default:
		return runConfig{}, fmt.Errorf("unknown -format %q (json|csv|xlsx)", cfg.Format)
	}
	if cfg.StoreKind != "" && strings.TrimSpace(cfg.StoreDSN) == "" {
		return runConfig{}, errors.New("-store requires -dsn")
	}

	return cfg, nil
}

func openInputs(paths []string) ([]pipeline.Input, func(), error) {
	var inputs []pipeline.Input
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open input: %w", err)
		}
		files = append(files, f)
		inputs = append(inputs, pipeline.Input{Name: f.Name(), Reader: f})
	}
	return inputs, closeAll, nil
}

func printSummary(w io.Writer, s stats.Summary, duplicates int) {
	fmt.Fprintf(w, "tractors: %d (from %d files, %d duplicates removed)\n",
		s.TotalRecords, s.FilesProcessed, duplicates)
	fmt.Fprintf(w, "engine hours: mean=%.1f median=%.1f min=%.1f max=%.1f std=%.1f\n",
		s.MeanHours, s.MedianHours, s.MinHours, s.MaxHours, s.StdHours)
	fmt.Fprintf(w, "900 hour milestone: %d under, %d at or over\n",
		s.UnderMilestone, s.OverMilestone)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
