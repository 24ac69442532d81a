package bridge

import (
	"time"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/metrics"
)

// Outcome is what a Strategy did with one envelope.
type Outcome uint8

const (
	// Sent means the first attempt succeeded.
	Sent Outcome = iota

	// SentAfterWait means the channel was full but space appeared in time.
	SentAfterWait

	// Dropped means the channel stayed full.
	Dropped

	// Shed means the envelope was discarded before touching the channel.
	Shed

	// Closed means the bridge no longer accepts envelopes.
	Closed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case SentAfterWait:
		return "sent-after-wait"
	case Dropped:
		return "dropped"
	case Shed:
		return "shed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Accepted reports whether the envelope reached the channel.
func (o Outcome) Accepted() bool {
	return o == Sent || o == SentAfterWait
}

// engaged reports whether backpressure was involved in the outcome.
func (o Outcome) engaged() bool {
	return o == SentAfterWait || o == Dropped || o == Shed
}

// Strategy decides how an envelope enters the channel.
// Implementations must not block longer than their own bound.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Send delivers env through s.
	Send(s Sender, env event.Envelope) Outcome
}

// DropStrategy makes a single non-blocking attempt.
type DropStrategy struct{}

// Name implements Strategy.
func (DropStrategy) Name() string { return "drop" }

// Send implements Strategy.
func (DropStrategy) Send(s Sender, env event.Envelope) Outcome {
	switch s.TrySend(env) {
	case SendOK:
		return Sent
	case SendClosed:
		return Closed
	default:
		return Dropped
	}
}

// BlockStrategy makes a non-blocking attempt, then waits at most Timeout.
type BlockStrategy struct {
	Timeout time.Duration
}

// Name implements Strategy.
func (BlockStrategy) Name() string { return "block" }

// Send implements Strategy.
func (b BlockStrategy) Send(s Sender, env event.Envelope) Outcome {
	switch s.TrySend(env) {
	case SendOK:
		return Sent
	case SendClosed:
		return Closed
	}

	switch s.SendTimeout(env, b.Timeout) {
	case SendOK:
		return SentAfterWait
	case SendClosed:
		return Closed
	default:
		return Dropped
	}
}

// AdaptiveStrategy sheds Background envelopes while the consumer is
// overloaded and otherwise behaves like DropStrategy.
//
// The consumer counts as overloaded when the running average event age
// exceeds AgeThreshold, or when the scheduler's published frame cost exceeds
// FrameCostThreshold (zero disables the frame check).
type AdaptiveStrategy struct {
	Metrics            *metrics.Metrics
	AgeThreshold       time.Duration
	FrameCostThreshold time.Duration
}

// NewAdaptiveStrategy builds an AdaptiveStrategy from cfg.
func NewAdaptiveStrategy(cfg config.Config, m *metrics.Metrics) *AdaptiveStrategy {
	return &AdaptiveStrategy{
		Metrics:            m,
		AgeThreshold:       cfg.AdaptiveAgeThreshold,
		FrameCostThreshold: cfg.FrameBudgetHigh,
	}
}

// Name implements Strategy.
func (*AdaptiveStrategy) Name() string { return "adaptive" }

// Overloaded reports whether Background sends are currently shed.
func (a *AdaptiveStrategy) Overloaded() bool {
	if a.Metrics == nil {
		return false
	}
	if a.Metrics.AverageEventAge() > a.AgeThreshold {
		return true
	}
	return a.FrameCostThreshold > 0 && a.Metrics.FrameCost() > a.FrameCostThreshold
}

// Send implements Strategy.
func (a *AdaptiveStrategy) Send(s Sender, env event.Envelope) Outcome {
	if env.Priority() == event.PriorityBackground && a.Overloaded() {
		return Shed
	}
	return DropStrategy{}.Send(s, env)
}

// StrategyFor returns the Strategy described by cfg.Backpressure.
func StrategyFor(cfg config.Config, m *metrics.Metrics) Strategy {
	switch cfg.Backpressure.Mode {
	case config.BackpressureBlock:
		return BlockStrategy{Timeout: cfg.Backpressure.Timeout}
	case config.BackpressureAdaptive:
		return NewAdaptiveStrategy(cfg, m)
	default:
		return DropStrategy{}
	}
}
