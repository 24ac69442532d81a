package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/hook"
	"github.com/dshills/keybridge/internal/metrics"
)

// DefaultHookPrefix prefixes the names under which hooks are registered.
const DefaultHookPrefix = "bridge."

// Bridge owns the send side of the channel and the hook registrations.
type Bridge struct {
	id       uuid.UUID
	cfg      config.Config
	registry hook.Registry
	metrics  *metrics.Metrics
	strategy Strategy
	logger   *zap.Logger
	now      func() time.Time
	prefix   string

	ch       *channel
	receiver *Receiver
	seq      atomic.Uint64

	// dropLog samples drop logging on the producer stack.
	dropLog rate.Sometimes

	regOnce    sync.Once
	regErr     error
	regMu      sync.Mutex
	registered []event.Kind

	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The bridge logs under the "bridge" name.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithStrategy overrides the strategy derived from the configuration.
func WithStrategy(s Strategy) Option {
	return func(b *Bridge) {
		if s != nil {
			b.strategy = s
		}
	}
}

// WithClock sets the clock used to timestamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithHookPrefix sets the prefix of registered hook names.
func WithHookPrefix(prefix string) Option {
	return func(b *Bridge) {
		b.prefix = prefix
	}
}

// New creates a bridge for a validated configuration. A nil m gets a fresh
// Metrics honoring cfg.MetricsEnabled.
func New(cfg config.Config, registry hook.Registry, m *metrics.Metrics, opts ...Option) *Bridge {
	if m == nil {
		m = metrics.New(cfg.MetricsEnabled)
	}

	ch := newChannel(cfg.ChannelCapacity)
	b := &Bridge{
		id:       uuid.New(),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		logger:   zap.NewNop(),
		now:      time.Now,
		prefix:   DefaultHookPrefix,
		ch:       ch,
		receiver: &Receiver{ch: ch.ch},
		dropLog:  rate.Sometimes{First: 5, Interval: time.Second},
	}
	b.strategy = StrategyFor(cfg, m)

	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("bridge").With(zap.Stringer("bridge_id", b.id))
	return b
}

// ID returns the bridge instance identifier used in logs.
func (b *Bridge) ID() uuid.UUID {
	return b.id
}

// Config returns the configuration the bridge was built with.
func (b *Bridge) Config() config.Config {
	return b.cfg
}

// Metrics returns the counters the bridge updates.
func (b *Bridge) Metrics() *metrics.Metrics {
	return b.metrics
}

// Strategy returns the active backpressure strategy.
func (b *Bridge) Strategy() Strategy {
	return b.strategy
}

// Receiver returns the consumer end of the channel.
func (b *Bridge) Receiver() *Receiver {
	return b.receiver
}

// Pending returns the number of buffered envelopes.
func (b *Bridge) Pending() int {
	return b.ch.len()
}

// HookName returns the name the bridge registers for kind.
func (b *Bridge) HookName(kind event.Kind) string {
	return b.prefix + kind.String()
}

// RegisterHooks registers one callback per notification kind.
//
// Only the first call talks to the registry; later calls return its result.
// Every refused kind is reported as a *RegistrationError combined into the
// returned error. On failure the kinds that did register are removed again
// when the registry supports it.
func (b *Bridge) RegisterHooks() error {
	b.regOnce.Do(func() {
		b.regErr = b.registerHooks()
	})
	return b.regErr
}

func (b *Bridge) registerHooks() error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.registry == nil {
		return &RegistrationError{Hook: b.prefix + "*", Err: hook.ErrClosed}
	}

	var errs error
	var ok []event.Kind
	for _, kind := range event.Kinds() {
		name := b.HookName(kind)
		if err := b.registry.RegisterHook(kind, name, b.callback(kind)); err != nil {
			errs = multierr.Append(errs, &RegistrationError{Kind: kind, Hook: name, Err: err})
			continue
		}
		ok = append(ok, kind)
	}

	b.regMu.Lock()
	b.registered = ok
	b.regMu.Unlock()

	if errs != nil {
		b.logger.Warn("hook registration failed",
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Int("registered", len(ok)),
			zap.Error(errs))
		b.unregisterHooks()
		return errs
	}

	b.logger.Debug("hooks registered", zap.Int("count", len(ok)))
	return nil
}

func (b *Bridge) unregisterHooks() {
	u, ok := b.registry.(hook.Unregisterer)
	if !ok {
		return
	}

	b.regMu.Lock()
	kinds := b.registered
	b.registered = nil
	b.regMu.Unlock()

	for _, kind := range kinds {
		u.UnregisterHook(kind, b.HookName(kind))
	}
}

// callback returns the hook callback for kind. It copies everything it keeps
// out of the borrowed notification and sends exactly once.
func (b *Bridge) callback(kind event.Kind) hook.Callback {
	priority := event.DefaultPriority(kind)
	return func(n *hook.Notification) {
		payload := Convert(kind, n)
		if payload == nil {
			b.logger.Warn("unknown notification kind", zap.Stringer("kind", kind))
			return
		}
		b.Send(payload, priority)
	}
}

// Send stamps payload with the current time and a sequence number and hands
// it to the strategy. It never waits longer than the Block timeout.
//
// Sequence numbers are assigned before the attempt, so dropped envelopes
// leave gaps in the sequence seen by the consumer.
func (b *Bridge) Send(payload event.Payload, priority event.Priority) Outcome {
	env := event.NewEnvelope(payload, priority, b.now()).WithSeq(b.seq.Add(1))

	outcome := b.strategy.Send(b.ch, env)
	if outcome.engaged() {
		b.metrics.IncBackpressure()
	}
	if outcome.Accepted() {
		b.metrics.IncSent()
		return outcome
	}

	b.metrics.IncDropped()
	if b.logger.Core().Enabled(zap.DebugLevel) {
		b.dropLog.Do(func() {
			b.logger.Debug("envelope dropped",
				zap.Stringer("kind", env.Kind()),
				zap.Stringer("priority", priority),
				zap.String("strategy", b.strategy.Name()),
				zap.Stringer("outcome", outcome),
				zap.Uint64("dropped_total", b.metrics.Dropped()))
		})
	}
	return outcome
}

// Close releases the send side. Buffered envelopes stay readable; afterwards
// the receiver reports RecvDisconnected. Hooks are unregistered when the
// registry supports it, and later sends are counted as dropped.
//
// A successor bridge using the same hook prefix must register after Close,
// or Close would remove the successor's callbacks.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.ch.close()
		if b.registry != nil {
			b.unregisterHooks()
		}
		b.logger.Debug("bridge closed", zap.Int("pending", b.ch.len()))
	})
}

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool {
	return b.closed.Load()
}
