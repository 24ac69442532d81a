package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Default values used when an option or file leaves a field unset.
const (
	DefaultChannelCapacity      = 1024
	DefaultMaxEventsPerFrame    = 256
	DefaultMinEventsPerFrame    = 16
	DefaultAdaptiveAgeThreshold = 100 * time.Millisecond
	DefaultStaleAfter           = 500 * time.Millisecond
	DefaultFrameBudgetLow       = 4 * time.Millisecond
	DefaultFrameBudgetHigh      = 12 * time.Millisecond
	DefaultFrameRate            = 60
	DefaultEventLogCapacity     = 1024
	DefaultDedupCapacity        = 256
	DefaultRecoveryBaseDelay    = 50 * time.Millisecond
	DefaultRecoveryMaxExponent  = 6
	DefaultRecoveryMaxAttempts  = 8
)

// maxRecoveryExponent keeps base << exponent well inside time.Duration.
const maxRecoveryExponent = 20

// Config is the validated, immutable configuration of the bridge subsystem.
// Obtain one from New, Default or LoadFile; it is safe to copy.
type Config struct {
	// ChannelCapacity bounds the number of envelopes buffered between
	// the producer and the frame loop.
	ChannelCapacity int

	// MaxEventsPerFrame is the base per-frame drain budget. The scheduler
	// adapts its live budget within [MinEventsPerFrame, 2*MaxEventsPerFrame].
	MaxEventsPerFrame int

	// MinEventsPerFrame is the floor the adaptive budget never goes below.
	// Left unset, it is DefaultMinEventsPerFrame capped at MaxEventsPerFrame.
	MinEventsPerFrame int

	// Backpressure selects what Send does when the channel is full.
	Backpressure Backpressure

	// AdaptiveAgeThreshold is the average event age above which the Adaptive
	// strategy considers the consumer overloaded.
	AdaptiveAgeThreshold time.Duration

	// StaleAfter is the age at which an envelope is discarded unprocessed.
	// Zero disables the staleness filter.
	StaleAfter time.Duration

	// MetricsEnabled turns on age and frame-cost accounting.
	MetricsEnabled bool

	// PriorityQueue routes accepted envelopes through the priority queue
	// instead of batching them in arrival order.
	PriorityQueue bool

	// FrameBudgetLow and FrameBudgetHigh bound the frame-cost average the
	// scheduler aims for.
	FrameBudgetLow  time.Duration
	FrameBudgetHigh time.Duration

	// FrameRate is the number of frames per second driven by the run loop.
	FrameRate int

	// EventLogCapacity is the ring size of the event log. Zero disables it.
	EventLogCapacity int

	// DedupCapacity bounds the number of (view, document) keys remembered
	// by the selection deduplicator.
	DedupCapacity int

	// RecoveryBaseDelay, RecoveryMaxExponent and RecoveryMaxAttempts shape the
	// reconnection backoff: delay = base * 2^min(attempt, exponent).
	RecoveryBaseDelay   time.Duration
	RecoveryMaxExponent int
	RecoveryMaxAttempts int
}

// Option configures a Config.
type Option func(*Config)

// WithChannelCapacity sets the channel capacity.
func WithChannelCapacity(n int) Option {
	return func(c *Config) {
		c.ChannelCapacity = n
	}
}

// WithMaxEventsPerFrame sets the base per-frame drain budget.
func WithMaxEventsPerFrame(n int) Option {
	return func(c *Config) {
		c.MaxEventsPerFrame = n
	}
}

// WithMinEventsPerFrame sets the adaptive budget floor. Zero selects
// DefaultMinEventsPerFrame capped at the max events per frame.
func WithMinEventsPerFrame(n int) Option {
	return func(c *Config) {
		c.MinEventsPerFrame = n
	}
}

// WithBackpressure sets the backpressure strategy.
func WithBackpressure(b Backpressure) Option {
	return func(c *Config) {
		c.Backpressure = b
	}
}

// WithAdaptiveAgeThreshold sets the overload threshold of the Adaptive strategy.
func WithAdaptiveAgeThreshold(d time.Duration) Option {
	return func(c *Config) {
		c.AdaptiveAgeThreshold = d
	}
}

// WithStaleAfter sets the staleness threshold. Zero disables staleness filtering.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Config) {
		c.StaleAfter = d
	}
}

// WithMetrics enables or disables metrics accounting.
func WithMetrics(enabled bool) Option {
	return func(c *Config) {
		c.MetricsEnabled = enabled
	}
}

// WithPriorityQueue enables or disables the priority queue stage.
func WithPriorityQueue(enabled bool) Option {
	return func(c *Config) {
		c.PriorityQueue = enabled
	}
}

// WithFrameBudget sets the frame-cost bounds.
func WithFrameBudget(low, high time.Duration) Option {
	return func(c *Config) {
		c.FrameBudgetLow = low
		c.FrameBudgetHigh = high
	}
}

// WithFrameRate sets the run loop frame rate.
func WithFrameRate(fps int) Option {
	return func(c *Config) {
		c.FrameRate = fps
	}
}

// WithEventLogCapacity sets the event log ring size.
func WithEventLogCapacity(n int) Option {
	return func(c *Config) {
		c.EventLogCapacity = n
	}
}

// WithDedupCapacity sets how many selection keys the deduplicator remembers.
func WithDedupCapacity(n int) Option {
	return func(c *Config) {
		c.DedupCapacity = n
	}
}

// WithRecovery sets the reconnection backoff parameters.
func WithRecovery(base time.Duration, maxExponent, maxAttempts int) Option {
	return func(c *Config) {
		c.RecoveryBaseDelay = base
		c.RecoveryMaxExponent = maxExponent
		c.RecoveryMaxAttempts = maxAttempts
	}
}

// Default returns the default configuration. It is always valid.
func Default() Config {
	return Config{
		ChannelCapacity:      DefaultChannelCapacity,
		MaxEventsPerFrame:    DefaultMaxEventsPerFrame,
		MinEventsPerFrame:    DefaultMinEventsPerFrame,
		Backpressure:         Drop(),
		AdaptiveAgeThreshold: DefaultAdaptiveAgeThreshold,
		StaleAfter:           DefaultStaleAfter,
		MetricsEnabled:       true,
		PriorityQueue:        true,
		FrameBudgetLow:       DefaultFrameBudgetLow,
		FrameBudgetHigh:      DefaultFrameBudgetHigh,
		FrameRate:            DefaultFrameRate,
		EventLogCapacity:     DefaultEventLogCapacity,
		DedupCapacity:        DefaultDedupCapacity,
		RecoveryBaseDelay:    DefaultRecoveryBaseDelay,
		RecoveryMaxExponent:  DefaultRecoveryMaxExponent,
		RecoveryMaxAttempts:  DefaultRecoveryMaxAttempts,
	}
}

// New applies opts over the defaults and validates the result.
// An invalid combination returns a *ConfigError and a zero Config.
func New(opts ...Option) (Config, error) {
	c := Default()
	c.MinEventsPerFrame = 0
	for _, opt := range opts {
		opt(&c)
	}
	c = c.withDefaultFloor()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field and reports all violations at once.
func (c Config) Validate() error {
	var errs error
	fail := func(field string, value any, reason string) {
		errs = multierr.Append(errs, &FieldError{Field: field, Value: value, Reason: reason})
	}

	if c.ChannelCapacity <= 0 {
		fail("channel_capacity", c.ChannelCapacity, "must be greater than zero")
	}
	switch {
	case c.MaxEventsPerFrame <= 0:
		fail("max_events_per_frame", c.MaxEventsPerFrame, "must be greater than zero")
	case c.ChannelCapacity > 0 && c.MaxEventsPerFrame > c.ChannelCapacity:
		fail("max_events_per_frame", c.MaxEventsPerFrame,
			fmt.Sprintf("must not exceed channel_capacity (%d)", c.ChannelCapacity))
	}
	switch {
	case c.MinEventsPerFrame <= 0:
		fail("min_events_per_frame", c.MinEventsPerFrame, "must be greater than zero")
	case c.MaxEventsPerFrame > 0 && c.MinEventsPerFrame > c.MaxEventsPerFrame:
		fail("min_events_per_frame", c.MinEventsPerFrame,
			fmt.Sprintf("must not exceed max_events_per_frame (%d)", c.MaxEventsPerFrame))
	}

	switch c.Backpressure.Mode {
	case BackpressureDrop:
	case BackpressureBlock:
		if c.Backpressure.Timeout <= 0 {
			fail("backpressure", c.Backpressure, "block timeout must be greater than zero")
		}
	case BackpressureAdaptive:
		if !c.MetricsEnabled {
			fail("backpressure", c.Backpressure, "adaptive backpressure requires metrics_enabled")
		}
	default:
		fail("backpressure", c.Backpressure, "unknown strategy")
	}
	if c.AdaptiveAgeThreshold <= 0 {
		fail("adaptive_age_threshold", c.AdaptiveAgeThreshold, "must be greater than zero")
	}
	if c.StaleAfter < 0 {
		fail("stale_after", c.StaleAfter, "must not be negative")
	}

	if c.FrameBudgetLow <= 0 {
		fail("frame_budget_low", c.FrameBudgetLow, "must be greater than zero")
	}
	if c.FrameBudgetHigh <= c.FrameBudgetLow {
		fail("frame_budget_high", c.FrameBudgetHigh,
			fmt.Sprintf("must be greater than frame_budget_low (%s)", c.FrameBudgetLow))
	}
	if c.FrameRate <= 0 {
		fail("frame_rate", c.FrameRate, "must be greater than zero")
	}

	if c.EventLogCapacity < 0 {
		fail("event_log_capacity", c.EventLogCapacity, "must not be negative")
	}
	if c.DedupCapacity <= 0 {
		fail("dedup_capacity", c.DedupCapacity, "must be greater than zero")
	}

	if c.RecoveryBaseDelay <= 0 {
		fail("recovery_base_delay", c.RecoveryBaseDelay, "must be greater than zero")
	}
	if c.RecoveryMaxExponent < 0 || c.RecoveryMaxExponent > maxRecoveryExponent {
		fail("recovery_max_exponent", c.RecoveryMaxExponent,
			fmt.Sprintf("must be between 0 and %d", maxRecoveryExponent))
	}
	if c.RecoveryMaxAttempts <= 0 {
		fail("recovery_max_attempts", c.RecoveryMaxAttempts, "must be greater than zero")
	}

	if errs != nil {
		return &ConfigError{Err: errs}
	}
	return nil
}

// withDefaultFloor fills an unset MinEventsPerFrame so that a smaller
// MaxEventsPerFrame alone stays valid.
func (c Config) withDefaultFloor() Config {
	if c.MinEventsPerFrame == 0 {
		c.MinEventsPerFrame = min(DefaultMinEventsPerFrame, max(c.MaxEventsPerFrame, 1))
	}
	return c
}

// FrameInterval returns the period between frames at FrameRate.
func (c Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Second / time.Duration(c.FrameRate)
}

// MaxRecoveryDelay returns the largest un-jittered reconnection delay.
func (c Config) MaxRecoveryDelay() time.Duration {
	return c.RecoveryBaseDelay << c.RecoveryMaxExponent
}
