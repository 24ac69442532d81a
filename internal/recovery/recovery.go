// Package recovery reconnects the bridge after the channel disconnects.
//
// The Manager is a three-state machine driven by the frame loop:
//
//	            Disconnected              dial ok
//	Connected ───────────────► Reconnecting ────────► Connected
//	                              │    ▲
//	                    dial fails│    │ delay elapsed
//	                              ▼    │
//	                         attempt++ ┘
//	                              │ attempt == max
//	                              ▼
//	                            Failed (terminal)
//
// Between attempts the manager waits base * 2^min(attempt, cap) with ±25%
// jitter. Poll never sleeps; it only dials once the delay has elapsed since
// the previous attempt. Reaching Failed is reported once as an error wrapping
// ErrRecoveryExhausted and on every later Poll.
package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/bridge"
	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/hook"
	"github.com/dshills/keybridge/internal/metrics"
)

// ErrRecoveryExhausted is matched by the error Poll returns in the Failed state.
var ErrRecoveryExhausted = errors.New("recovery exhausted")

// State is the connection state.
type State uint8

const (
	StateConnected State = iota
	StateReconnecting
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is a snapshot of the manager.
type Status struct {
	State State

	// Attempt counts failed attempts since the disconnection.
	Attempt int

	// LastAttempt is when the previous attempt ran, or when the
	// disconnection was detected if none has run yet.
	LastAttempt time.Time

	// Delay is the wait after LastAttempt before the next attempt.
	Delay time.Duration

	// Reconnects counts successful reconnections over the manager's life.
	Reconnects uint64

	// LastError is the most recent dial failure.
	LastError error
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("recovery exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last dial error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches ErrRecoveryExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRecoveryExhausted
}

// Dialer builds a fresh, registered bridge.
type Dialer func() (*bridge.Bridge, error)

// BridgeDialer returns a Dialer that builds a bridge from cfg and registers
// its hooks. A bridge whose registration fails is closed and the error returned.
func BridgeDialer(cfg config.Config, registry hook.Registry, m *metrics.Metrics, opts ...bridge.Option) Dialer {
	return func() (*bridge.Bridge, error) {
		b := bridge.New(cfg, registry, m, opts...)
		if err := b.RegisterHooks(); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil
	}
}

// NewBackOff returns the jittered exponential backoff described by cfg.
func NewBackOff(cfg config.Config) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.RecoveryBaseDelay,
		RandomizationFactor: 0.25,
		Multiplier:          2,
		MaxInterval:         cfg.MaxRecoveryDelay(),
	}
	b.Reset()
	return b
}

// Manager tracks the connection state and performs reconnection attempts.
// It is owned by the frame loop and is not safe for concurrent use.
type Manager struct {
	maxAttempts int
	dial        Dialer
	backoff     backoff.BackOff
	logger      *zap.Logger

	state       State
	attempt     int
	lastAttempt time.Time
	delay       time.Duration
	lastErr     error
	reconnects  uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackOff replaces the delay policy.
func WithBackOff(b backoff.BackOff) Option {
	return func(m *Manager) {
		if b != nil {
			m.backoff = b
		}
	}
}

// WithLogger sets the logger. The manager logs under the "recovery" name.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a manager in the Connected state.
func New(cfg config.Config, dial Dialer, opts ...Option) *Manager {
	m := &Manager{
		maxAttempts: cfg.RecoveryMaxAttempts,
		dial:        dial,
		backoff:     NewBackOff(cfg),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("recovery")
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state
}

// Status returns a snapshot of the manager.
func (m *Manager) Status() Status {
	return Status{
		State:       m.state,
		Attempt:     m.attempt,
		LastAttempt: m.lastAttempt,
		Delay:       m.delay,
		Reconnects:  m.reconnects,
		LastError:   m.lastErr,
	}
}

// Disconnected moves a connected manager to Reconnecting. The first attempt
// becomes due one backoff delay after now. Other states are unchanged.
func (m *Manager) Disconnected(now time.Time) {
	if m.state != StateConnected {
		return
	}
	m.state = StateReconnecting
	m.attempt = 0
	m.lastAttempt = now
	m.backoff.Reset()
	m.delay = m.backoff.NextBackOff()
	m.logger.Warn("bridge disconnected", zap.Duration("retry_in", m.delay))
}

// Poll attempts a reconnection when one is due.
//
// It returns the new bridge on success. While reconnecting, failed attempts
// and attempts not yet due return (nil, nil). Once the attempts are used up
// the manager is Failed and Poll returns an *ExhaustedError.
func (m *Manager) Poll(now time.Time) (*bridge.Bridge, error) {
	switch m.state {
	case StateConnected:
		return nil, nil
	case StateFailed:
		return nil, &ExhaustedError{Attempts: m.attempt, Err: m.lastErr}
	}

	if now.Sub(m.lastAttempt) < m.delay {
		return nil, nil
	}

	m.lastAttempt = now
	b, err := m.dial()
	if err == nil {
		m.logger.Info("bridge reconnected",
			zap.Int("attempt", m.attempt+1),
			zap.Stringer("bridge_id", b.ID()))
		m.state = StateConnected
		m.attempt = 0
		m.delay = 0
		m.lastErr = nil
		m.reconnects++
		m.backoff.Reset()
		return b, nil
	}

	m.attempt++
	m.lastErr = err
	m.delay = m.backoff.NextBackOff()

	if m.attempt >= m.maxAttempts || m.delay == backoff.Stop {
		m.state = StateFailed
		m.logger.Error("recovery exhausted", zap.Int("attempts", m.attempt), zap.Error(err))
		return nil, &ExhaustedError{Attempts: m.attempt, Err: err}
	}

	m.logger.Warn("reconnection failed",
		zap.Int("attempt", m.attempt),
		zap.Duration("retry_in", m.delay),
		zap.Error(err))
	return nil, nil
}
