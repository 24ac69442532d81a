// Package app wires the bridge, pipeline, frame scheduler and recovery
// manager into one runtime and drives it from a frame ticker.
//
// The editing core sees the application only through the hook registry it
// was given; the UI sees it only through the sink. Everything in between is
// owned here and stepped on one goroutine.
package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/bridge"
	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/eventlog"
	"github.com/dshills/keybridge/internal/hook"
	"github.com/dshills/keybridge/internal/metrics"
	"github.com/dshills/keybridge/internal/pipeline"
	"github.com/dshills/keybridge/internal/recovery"
	"github.com/dshills/keybridge/internal/scheduler"
	"github.com/dshills/keybridge/internal/ui"
)

// Options configures the application.
type Options struct {
	// Logger receives all component logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Filters run after the staleness filter. Filters implementing
	// io.Closer, or a Close method without result, are closed by Close.
	Filters []pipeline.Filter

	// Redrawer is asked for frames. Defaults to the sink when it implements
	// ui.Redrawer.
	Redrawer ui.Redrawer

	// Meter, when set, exports the metrics as OpenTelemetry instruments.
	Meter metric.Meter

	// StatsInterval, when positive, makes Run log a metrics snapshot at
	// that period.
	StatsInterval time.Duration

	// Clock overrides time.Now for every component.
	Clock func() time.Time

	// Strategy overrides the backpressure strategy derived from the config.
	Strategy bridge.Strategy
}

// Application owns one bridge-to-UI runtime.
type Application struct {
	// mu serializes Step and Close.
	mu sync.Mutex

	cfg       config.Config
	metrics   *metrics.Metrics
	log       *eventlog.Log
	pipeline  *pipeline.Pipeline
	recovery  *recovery.Manager
	scheduler *scheduler.Scheduler
	export    metric.Registration
	logger    *zap.Logger
	opts      Options

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// New validates cfg, registers a bridge with registry and builds the
// consumer side. Updates are emitted to sink.
func New(cfg config.Config, registry hook.Registry, sink ui.Sink, opts Options) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	app := &Application{
		cfg:     cfg,
		metrics: metrics.New(cfg.MetricsEnabled),
		logger:  opts.Logger,
		opts:    opts,
		done:    make(chan struct{}),
	}
	if cfg.EventLogCapacity > 0 {
		app.log = eventlog.New(cfg.EventLogCapacity, eventlog.WithClock(opts.Clock))
	}

	if err := app.bootstrap(registry, sink); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap builds the components in dependency order.
func (app *Application) bootstrap(registry hook.Registry, sink ui.Sink) error {
	// 1. Bridge, through the same dialer recovery uses.
	bridgeOpts := []bridge.Option{
		bridge.WithLogger(app.logger),
		bridge.WithClock(app.opts.Clock),
	}
	if app.opts.Strategy != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithStrategy(app.opts.Strategy))
	}
	dial := recovery.BridgeDialer(app.cfg, registry, app.metrics, bridgeOpts...)
	b, err := dial()
	if err != nil {
		return &InitError{Component: "bridge", Err: err}
	}

	// 2. Pipeline
	app.pipeline, err = pipeline.New(app.cfg, app.metrics,
		pipeline.WithFilters(app.opts.Filters...),
		pipeline.WithLogger(app.logger))
	if err != nil {
		b.Close()
		return &InitError{Component: "pipeline", Err: err}
	}

	// 3. Recovery and scheduler
	app.recovery = recovery.New(app.cfg, dial, recovery.WithLogger(app.logger))
	schedOpts := []scheduler.Option{
		scheduler.WithRecovery(app.recovery),
		scheduler.WithSink(sink),
		scheduler.WithRedrawer(app.opts.Redrawer),
		scheduler.WithLogger(app.logger),
		scheduler.WithClock(app.opts.Clock),
	}
	if app.log != nil {
		schedOpts = append(schedOpts, scheduler.WithEventLog(app.log))
	}
	app.scheduler = scheduler.New(app.cfg, b, app.pipeline, schedOpts...)

	// 4. Telemetry
	if app.opts.Meter != nil {
		app.export, err = metrics.Export(app.opts.Meter, app.metrics)
		if err != nil {
			b.Close()
			return &InitError{Component: "metrics", Err: err}
		}
	}

	app.logger.Info("bridge ready",
		zap.Stringer("bridge_id", b.ID()),
		zap.Stringer("backpressure", app.cfg.Backpressure),
		zap.Int("channel_capacity", app.cfg.ChannelCapacity),
		zap.Int("max_events_per_frame", app.cfg.MaxEventsPerFrame),
		zap.Bool("priority_queue", app.cfg.PriorityQueue))
	return nil
}

// Step runs one frame.
func (app *Application) Step() (scheduler.StepResult, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed.Load() {
		return scheduler.StepResult{}, ErrClosed
	}
	return app.scheduler.Step()
}

// Run steps once per frame interval until ctx is done, Close is called or a
// step fails. Cancellation and Close return nil.
func (app *Application) Run(ctx context.Context) error {
	if app.closed.Load() {
		return ErrClosed
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	frameTicker := time.NewTicker(app.cfg.FrameInterval())
	defer frameTicker.Stop()

	var stats <-chan time.Time
	if app.opts.StatsInterval > 0 {
		statsTicker := time.NewTicker(app.opts.StatsInterval)
		defer statsTicker.Stop()
		stats = statsTicker.C
	}

	app.logger.Debug("frame loop started", zap.Duration("interval", app.cfg.FrameInterval()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-app.done:
			return nil
		case <-stats:
			app.logger.Info("bridge metrics", zap.Object("metrics", app.metrics.Snapshot()))
		case <-frameTicker.C:
			if _, err := app.Step(); err != nil {
				if app.closed.Load() {
					return nil
				}
				app.logger.Error("frame loop stopped", zap.Error(err))
				return NewComponentError("scheduler", "step", err)
			}
		}
	}
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Close stops Run, releases the bridge and its hooks, closes closable
// filters and stops the metric export. It is safe to call more than once.
func (app *Application) Close() error {
	var errs error
	app.closeOnce.Do(func() {
		app.mu.Lock()
		defer app.mu.Unlock()

		app.closed.Store(true)
		close(app.done)

		if b := app.scheduler.Bridge(); b != nil {
			b.Close()
		}
		for _, f := range app.opts.Filters {
			switch c := f.(type) {
			case io.Closer:
				errs = multierr.Append(errs, c.Close())
			case interface{ Close() }:
				c.Close()
			}
		}
		if app.export != nil {
			errs = multierr.Append(errs, app.export.Unregister())
		}

		app.logger.Info("bridge closed", zap.Object("metrics", app.metrics.Snapshot()))
	})
	return errs
}

// Config returns the validated configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Metrics returns the shared counters.
func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}

// Log returns the event log, or nil when EventLogCapacity is zero.
func (app *Application) Log() *eventlog.Log {
	return app.log
}

// Pipeline returns the consumer pipeline.
func (app *Application) Pipeline() *pipeline.Pipeline {
	return app.pipeline
}

// Recovery returns the recovery manager.
func (app *Application) Recovery() *recovery.Manager {
	return app.recovery
}

// Scheduler returns the frame scheduler.
func (app *Application) Scheduler() *scheduler.Scheduler {
	return app.scheduler
}

// Bridge returns the live bridge, or nil while reconnecting.
func (app *Application) Bridge() *bridge.Bridge {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.scheduler.Bridge()
}
