// Package scheduler drives the consumer side of the bridge once per UI frame.
//
// Each Step drains at most the current budget of envelopes without blocking,
// runs them through the pipeline, emits the coalesced updates to the UI sink
// and adapts the budget to how long frames take. The scheduler owns the
// pipeline and the event log and is not safe for concurrent use.
package scheduler

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/bridge"
	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/eventlog"
	"github.com/dshills/keybridge/internal/metrics"
	"github.com/dshills/keybridge/internal/pipeline"
	"github.com/dshills/keybridge/internal/recovery"
	"github.com/dshills/keybridge/internal/ui"
)

// ErrDisconnected is returned by Step once the bridge has disconnected and
// no recovery manager is configured.
var ErrDisconnected = errors.New("bridge disconnected")

// costAlpha is the weight of the newest frame in the frame-cost average.
const costAlpha = 0.2

// StepResult describes one frame.
type StepResult struct {
	// Received counts envelopes read from the channel.
	Received int

	// Filtered and Deduplicated count envelopes the pipeline rejected.
	Filtered     int
	Deduplicated int

	// Drained counts envelopes moved from the priority queue to the batcher.
	Drained int

	// Updates counts updates emitted to the sink.
	Updates int

	// Redraw reports whether a redraw was requested.
	Redraw bool

	// Disconnected is set on the frame that observed the disconnection and
	// on every frame spent waiting for recovery.
	Disconnected bool

	// Reconnected is set on the frame that installed a new bridge.
	Reconnected bool

	// Duration is the wall-clock time of the frame.
	Duration time.Duration

	// Budget is the per-frame drain limit after adaptation.
	Budget int
}

// Scheduler runs the frame loop body.
type Scheduler struct {
	cfg      config.Config
	bridge   *bridge.Bridge
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	recovery *recovery.Manager
	log      *eventlog.Log
	sink     ui.Sink
	redrawer ui.Redrawer
	logger   *zap.Logger
	now      func() time.Time

	budget int
	cost   time.Duration
	frames uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecovery hands disconnections to r. Without it a disconnection is final.
func WithRecovery(r *recovery.Manager) Option {
	return func(s *Scheduler) {
		s.recovery = r
	}
}

// WithEventLog records every received envelope in l.
func WithEventLog(l *eventlog.Log) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithSink sets where updates go. A sink that also implements ui.Redrawer
// receives redraw requests unless WithRedrawer is given too.
func WithSink(sink ui.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithRedrawer sets who is asked for a new frame.
func WithRedrawer(r ui.Redrawer) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.redrawer = r
		}
	}
}

// WithLogger sets the logger. The scheduler logs under the "scheduler" name.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for ages and frame timing.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler reading from b into p. Metrics are taken from b.
func New(cfg config.Config, b *bridge.Bridge, p *pipeline.Pipeline, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		bridge:   b,
		pipeline: p,
		metrics:  b.Metrics(),
		sink:     ui.Discard,
		logger:   zap.NewNop(),
		now:      time.Now,
		budget:   cfg.MaxEventsPerFrame,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.redrawer == nil {
		if r, ok := s.sink.(ui.Redrawer); ok {
			s.redrawer = r
		} else {
			s.redrawer = ui.Discard
		}
	}
	s.logger = s.logger.Named("scheduler")
	s.metrics.SetFrameBudget(s.budget)
	return s
}

// Bridge returns the current bridge, or nil while disconnected.
func (s *Scheduler) Bridge() *bridge.Bridge {
	return s.bridge
}

// Connected reports whether a bridge is installed.
func (s *Scheduler) Connected() bool {
	return s.bridge != nil
}

// Pipeline returns the pipeline.
func (s *Scheduler) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Budget returns the current per-frame drain limit.
func (s *Scheduler) Budget() int {
	return s.budget
}

// FrameCost returns the moving average of frame durations.
func (s *Scheduler) FrameCost() time.Duration {
	return s.cost
}

// Frames returns how many steps completed.
func (s *Scheduler) Frames() uint64 {
	return s.frames
}

// Step runs one frame. It never blocks.
//
// A disconnected channel is not an error: the frame reports Disconnected and
// later frames poll the recovery manager. Step returns an error only when no
// recovery manager is configured or recovery is exhausted.
func (s *Scheduler) Step() (StepResult, error) {
	start := s.now()
	var res StepResult

	if s.bridge == nil {
		if err := s.reconnect(start, &res); err != nil {
			return res, err
		}
		if s.bridge == nil {
			res.Budget = s.budget
			return res, nil
		}
	}

	recv := s.bridge.Receiver()
drain:
	for res.Received < s.budget {
		env, status := recv.TryRecv()
		switch status {
		case bridge.RecvEmpty:
			break drain
		case bridge.RecvDisconnected:
			s.disconnect(start, &res)
			break drain
		}

		res.Received++
		s.metrics.IncReceived()
		s.metrics.RecordAge(env.Age(start))
		if s.log != nil {
			s.log.Record(env)
		}
		switch s.pipeline.ProcessEvent(env, start) {
		case pipeline.Filtered:
			res.Filtered++
		case pipeline.Deduplicated:
			res.Deduplicated++
		}
	}

	if s.pipeline.HasQueue() {
		res.Drained = s.pipeline.DrainQueue(res.Received)
	}

	updates := s.pipeline.Flush()
	for _, u := range updates {
		s.sink.Emit(u)
	}
	res.Updates = len(updates)
	s.metrics.AddUpdates(res.Updates)

	if res.Received > 0 || res.Updates > 0 {
		s.redrawer.RequestRedraw()
		s.metrics.IncRedraw()
		res.Redraw = true
	}

	res.Duration = s.now().Sub(start)
	s.adapt(res.Duration)
	res.Budget = s.budget

	if res.Disconnected && s.recovery == nil {
		return res, ErrDisconnected
	}
	return res, nil
}

func (s *Scheduler) reconnect(now time.Time, res *StepResult) error {
	res.Disconnected = true
	if s.recovery == nil {
		return ErrDisconnected
	}

	b, err := s.recovery.Poll(now)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}

	s.bridge = b
	s.metrics = b.Metrics()
	res.Disconnected = false
	res.Reconnected = true
	s.logger.Info("bridge installed", zap.Stringer("bridge_id", b.ID()))
	return nil
}

// disconnect releases the dead bridge so a successor can take its hook names.
func (s *Scheduler) disconnect(now time.Time, res *StepResult) {
	s.logger.Warn("channel disconnected", zap.Stringer("bridge_id", s.bridge.ID()))
	s.bridge.Close()
	s.bridge = nil
	res.Disconnected = true
	if s.recovery != nil {
		s.recovery.Disconnected(now)
	}
}

// adapt folds elapsed into the frame-cost average and moves the budget:
// cheap frames grow it toward twice the configured limit, expensive frames
// shrink it toward the configured minimum.
func (s *Scheduler) adapt(elapsed time.Duration) {
	if s.frames == 0 {
		s.cost = elapsed
	} else {
		s.cost = time.Duration(costAlpha*float64(elapsed) + (1-costAlpha)*float64(s.cost))
	}
	s.frames++

	base := s.cfg.MaxEventsPerFrame
	switch {
	case s.cost < s.cfg.FrameBudgetLow:
		s.budget = min(s.budget+max(1, base/10), 2*base)
	case s.cost > s.cfg.FrameBudgetHigh:
		s.budget = max(s.budget*3/4, s.cfg.MinEventsPerFrame)
	}

	s.metrics.SetFrameCost(s.cost)
	s.metrics.SetFrameBudget(s.budget)
	s.metrics.RecordFrame(elapsed)
}
