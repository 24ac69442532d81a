package config

import (
	"fmt"
	"strings"
	"time"
)

// BackpressureMode names a backpressure strategy.
type BackpressureMode uint8

const (
	// BackpressureDrop makes one non-blocking attempt and drops on failure.
	BackpressureDrop BackpressureMode = iota

	// BackpressureBlock waits up to a timeout for channel space.
	BackpressureBlock

	// BackpressureAdaptive sheds background sends while the consumer is overloaded.
	BackpressureAdaptive
)

// Backpressure is a strategy together with its parameter.
type Backpressure struct {
	Mode BackpressureMode

	// Timeout is the longest a Block send waits. Unused by other modes.
	Timeout time.Duration
}

// Drop returns the Drop strategy.
func Drop() Backpressure {
	return Backpressure{Mode: BackpressureDrop}
}

// Block returns the Block strategy waiting at most d.
func Block(d time.Duration) Backpressure {
	return Backpressure{Mode: BackpressureBlock, Timeout: d}
}

// Adaptive returns the Adaptive strategy.
func Adaptive() Backpressure {
	return Backpressure{Mode: BackpressureAdaptive}
}

// String renders the strategy in the form accepted by ParseBackpressure.
func (b Backpressure) String() string {
	switch b.Mode {
	case BackpressureDrop:
		return "drop"
	case BackpressureBlock:
		return "block:" + b.Timeout.String()
	case BackpressureAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("backpressure(%d)", uint8(b.Mode))
	}
}

// ParseBackpressure parses "drop", "adaptive" or "block:<duration>".
// A bare "block" is rejected: the timeout must be explicit.
func ParseBackpressure(s string) (Backpressure, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "drop":
		return Drop(), nil
	case "adaptive":
		return Adaptive(), nil
	}

	if rest, ok := strings.CutPrefix(s, "block:"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return Backpressure{}, fmt.Errorf("%w: %q: %v", ErrUnknownBackpressure, s, err)
		}
		return Block(d), nil
	}
	return Backpressure{}, fmt.Errorf("%w: %q", ErrUnknownBackpressure, s)
}

// MarshalText implements encoding.TextMarshaler.
func (b Backpressure) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so strategies can be
// written as strings in TOML files and environment variables.
func (b *Backpressure) UnmarshalText(text []byte) error {
	parsed, err := ParseBackpressure(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
