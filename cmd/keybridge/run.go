package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/app"
	"github.com/dshills/keybridge/internal/hook"
	"github.com/dshills/keybridge/internal/metrics"
	"github.com/dshills/keybridge/internal/pipeline"
	"github.com/dshills/keybridge/internal/ui"
)

type runOptions struct {
	duration      time.Duration
	rate          int
	seed          uint64
	filterScript  string
	scriptTimeout time.Duration
	otlpEndpoint  string
	otlpInsecure  bool
	otlpInterval  time.Duration
	statsInterval time.Duration
	dump          string
	tui           bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the bridge with a simulated editing core",
		Long: `Run registers the bridge with a simulated editing core, fires a mix of
notifications at the requested rate, and steps the frame loop until the
duration elapses or the process is interrupted. Afterwards it prints the
metrics and, with --dump, the event log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.DurationVarP(&opts.duration, "duration", "d", 5*time.Second, "How long to run")
	flags.IntVarP(&opts.rate, "rate", "r", 2000, "Notifications per second fired by the simulated core")
	flags.Uint64Var(&opts.seed, "seed", 1, "Seed for the simulated core")
	flags.StringVar(&opts.filterScript, "filter-script", "", "Lua file defining accept(kind, priority, age_ms)")
	flags.DurationVar(&opts.scriptTimeout, "script-timeout", 2*time.Millisecond, "Per-call limit for the filter script")
	flags.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export metrics over OTLP/HTTP to host:port")
	flags.BoolVar(&opts.otlpInsecure, "otlp-insecure", false, "Use plain HTTP for OTLP export")
	flags.DurationVar(&opts.otlpInterval, "otlp-interval", 5*time.Second, "OTLP export period")
	flags.DurationVar(&opts.statsInterval, "stats-interval", 0, "Log a metrics snapshot at this period")
	flags.StringVar(&opts.dump, "dump", "", "Write the event log to this file after the run (- for stdout)")
	flags.BoolVar(&opts.tui, "tui", false, "Show live counts in the terminal while running")
	return cmd
}

func runBridge(cmd *cobra.Command, root *rootOptions, opts *runOptions) (err error) {
	cfg, err := root.loadConfig("")
	if err != nil {
		return err
	}
	logger, err := root.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	meter, shutdownTelemetry, err := setupTelemetry(ctx, opts.otlpEndpoint, opts.otlpInsecure, opts.otlpInterval)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, shutdownTelemetry(shutdownCtx))
	}()

	var filters []pipeline.Filter
	var script *pipeline.ScriptFilter
	if opts.filterScript != "" {
		script, err = pipeline.LoadScriptFilter(opts.filterScript, pipeline.WithScriptTimeout(opts.scriptTimeout))
		if err != nil {
			return err
		}
		filters = append(filters, script)
	}

	counts := newCategoryCounts()
	var sink ui.Sink = counts
	var screen tcell.Screen
	if opts.tui {
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create terminal: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("init terminal: %w", err)
		}
		defer screen.Fini()
		sink = ui.NewScreenSink(screen)
	}

	hooks := hook.NewManager()
	application, err := app.New(cfg, hooks, sink, app.Options{
		Logger:        logger,
		Filters:       filters,
		Meter:         meter,
		StatsInterval: opts.statsInterval,
	})
	if err != nil {
		return err
	}

	sim := newSimulator(hooks, opts.seed)
	fired := make(chan uint64, 1)
	go func() { fired <- sim.run(ctx, opts.rate) }()

	runErr := make(chan error, 1)
	go func() { runErr <- application.Run(ctx) }()

	if screen != nil {
		watch(ctx, cancel, screen, counts, application.Metrics())
	}

	err = <-runErr
	cancel()
	total := <-fired

	if err == nil {
		err = drain(application)
	}
	err = multierr.Append(err, application.Close())

	if screen != nil {
		screen.Fini()
	}

	out := cmd.OutOrStdout()
	report(out, total, application.Metrics().Snapshot(), counts)
	if script != nil && script.Failures() > 0 {
		logger.Warn("filter script failures",
			zap.Uint64("failures", script.Failures()),
			zap.Error(script.LastError()))
	}

	if opts.dump != "" && application.Log() != nil {
		if opts.dump == "-" {
			err = multierr.Append(err, application.Log().DumpTo(out))
		} else {
			err = multierr.Append(err, application.Log().DumpToFile(opts.dump))
		}
	}
	return err
}

// drain steps until the channel is empty so the report covers every
// notification the simulator fired.
func drain(application *app.Application) error {
	for range 10_000 {
		res, err := application.Step()
		if err != nil {
			return err
		}
		if res.Received == 0 {
			return nil
		}
	}
	return nil
}

// categoryCounts counts emitted updates per category.
type categoryCounts struct {
	mu     sync.Mutex
	counts map[pipeline.Category]uint64
}

func newCategoryCounts() *categoryCounts {
	return &categoryCounts{counts: make(map[pipeline.Category]uint64)}
}

// Emit implements ui.Sink.
func (c *categoryCounts) Emit(u pipeline.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[u.Category()]++
}

func (c *categoryCounts) get(cat pipeline.Category) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[cat]
}

func report(w io.Writer, fired uint64, s metrics.Snapshot, counts *categoryCounts) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "fired\t%d\n", fired)
	fmt.Fprintf(tw, "sent\t%d\n", s.Sent)
	fmt.Fprintf(tw, "dropped\t%d\n", s.Dropped)
	fmt.Fprintf(tw, "backpressure engaged\t%d\n", s.BackpressureEngaged)
	fmt.Fprintf(tw, "received\t%d\n", s.Received)
	fmt.Fprintf(tw, "stale\t%d\n", s.Stale)
	fmt.Fprintf(tw, "filtered\t%d\n", s.Filtered)
	fmt.Fprintf(tw, "deduplicated\t%d\n", s.Deduplicated)
	fmt.Fprintf(tw, "updates emitted\t%d\n", s.UpdatesEmitted)
	fmt.Fprintf(tw, "redraws\t%d\n", s.Redraws)
	fmt.Fprintf(tw, "average event age\t%s\n", s.AverageEventAge)
	fmt.Fprintf(tw, "frames\t%d (min %s, max %s)\n", s.Frames, s.MinFrame, s.MaxFrame)
	fmt.Fprintf(tw, "frame cost\t%s\n", s.FrameCost)
	fmt.Fprintf(tw, "frame budget\t%d\n", s.FrameBudget)
	fmt.Fprintln(tw, "updates by category:")
	for c := pipeline.CategoryDocuments; c <= pipeline.CategoryPicker; c++ {
		fmt.Fprintf(tw, "  %s\t%d\n", c, counts.get(c))
	}
	_ = tw.Flush()
}
