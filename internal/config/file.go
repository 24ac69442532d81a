package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by LoadFile.
const EnvPrefix = "KEYBRIDGE"

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// File is the on-disk and environment form of Config.
//
// Every field maps to a TOML key and to an environment variable named
// KEYBRIDGE_<TABLE>_<KEY>, for example KEYBRIDGE_CHANNEL_CAPACITY=2048,
// KEYBRIDGE_BACKPRESSURE=block:5ms or KEYBRIDGE_RECOVERY_MAX_ATTEMPTS=3.
type File struct {
	ChannelCapacity      int          `toml:"channel_capacity" envconfig:"CHANNEL_CAPACITY"`
	MaxEventsPerFrame    int          `toml:"max_events_per_frame" envconfig:"MAX_EVENTS_PER_FRAME"`
	MinEventsPerFrame    int          `toml:"min_events_per_frame" envconfig:"MIN_EVENTS_PER_FRAME"`
	Backpressure         Backpressure `toml:"backpressure" envconfig:"BACKPRESSURE"`
	AdaptiveAgeThreshold Duration     `toml:"adaptive_age_threshold" envconfig:"ADAPTIVE_AGE_THRESHOLD"`
	StaleAfter           Duration     `toml:"stale_after" envconfig:"STALE_AFTER"`
	MetricsEnabled       bool         `toml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	PriorityQueue        bool         `toml:"priority_queue" envconfig:"PRIORITY_QUEUE"`

	Frame    FrameFile    `toml:"frame" envconfig:"FRAME"`
	EventLog EventLogFile `toml:"event_log" envconfig:"EVENT_LOG"`
	Recovery RecoveryFile `toml:"recovery" envconfig:"RECOVERY"`

	DedupCapacity int `toml:"dedup_capacity" envconfig:"DEDUP_CAPACITY"`
}

// FrameFile holds frame pacing settings ([frame] table).
type FrameFile struct {
	BudgetLow  Duration `toml:"budget_low" envconfig:"BUDGET_LOW"`
	BudgetHigh Duration `toml:"budget_high" envconfig:"BUDGET_HIGH"`
	Rate       int      `toml:"rate" envconfig:"RATE"`
}

// EventLogFile holds event log settings ([event_log] table).
type EventLogFile struct {
	Capacity int `toml:"capacity" envconfig:"CAPACITY"`
}

// RecoveryFile holds reconnection settings ([recovery] table).
type RecoveryFile struct {
	BaseDelay   Duration `toml:"base_delay" envconfig:"BASE_DELAY"`
	MaxExponent int      `toml:"max_exponent" envconfig:"MAX_EXPONENT"`
	MaxAttempts int      `toml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
}

// File returns the file form of c.
func (c Config) File() File {
	return File{
		ChannelCapacity:      c.ChannelCapacity,
		MaxEventsPerFrame:    c.MaxEventsPerFrame,
		MinEventsPerFrame:    c.MinEventsPerFrame,
		Backpressure:         c.Backpressure,
		AdaptiveAgeThreshold: Duration(c.AdaptiveAgeThreshold),
		StaleAfter:           Duration(c.StaleAfter),
		MetricsEnabled:       c.MetricsEnabled,
		PriorityQueue:        c.PriorityQueue,
		Frame: FrameFile{
			BudgetLow:  Duration(c.FrameBudgetLow),
			BudgetHigh: Duration(c.FrameBudgetHigh),
			Rate:       c.FrameRate,
		},
		EventLog:      EventLogFile{Capacity: c.EventLogCapacity},
		Recovery:      RecoveryFile{BaseDelay: Duration(c.RecoveryBaseDelay), MaxExponent: c.RecoveryMaxExponent, MaxAttempts: c.RecoveryMaxAttempts},
		DedupCapacity: c.DedupCapacity,
	}
}

// Config converts the file form back to a Config without validating it.
func (f File) Config() Config {
	return Config{
		ChannelCapacity:      f.ChannelCapacity,
		MaxEventsPerFrame:    f.MaxEventsPerFrame,
		MinEventsPerFrame:    f.MinEventsPerFrame,
		Backpressure:         f.Backpressure,
		AdaptiveAgeThreshold: time.Duration(f.AdaptiveAgeThreshold),
		StaleAfter:           time.Duration(f.StaleAfter),
		MetricsEnabled:       f.MetricsEnabled,
		PriorityQueue:        f.PriorityQueue,
		FrameBudgetLow:       time.Duration(f.Frame.BudgetLow),
		FrameBudgetHigh:      time.Duration(f.Frame.BudgetHigh),
		FrameRate:            f.Frame.Rate,
		EventLogCapacity:     f.EventLog.Capacity,
		DedupCapacity:        f.DedupCapacity,
		RecoveryBaseDelay:    time.Duration(f.Recovery.BaseDelay),
		RecoveryMaxExponent:  f.Recovery.MaxExponent,
		RecoveryMaxAttempts:  f.Recovery.MaxAttempts,
	}
}

// LoadFile builds a Config from defaults, the TOML file at path and the
// environment, in that order of precedence, then validates it once.
// An empty path skips the file.
func LoadFile(path string) (Config, error) {
	f := Default().File()
	f.MinEventsPerFrame = 0

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decodeTOML(path, data, &f); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &f); err != nil {
		return Config{}, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}

	c := f.Config().withDefaultFloor()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Decode reads a TOML document from r over the defaults and validates it.
// The environment is not consulted.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	f := Default().File()
	f.MinEventsPerFrame = 0
	if err := decodeTOML("<reader>", data, &f); err != nil {
		return Config{}, err
	}
	c := f.Config().withDefaultFloor()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Encode writes c to w as TOML.
func (c Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	return enc.Encode(c.File())
}

func decodeTOML(source string, data []byte, f *File) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return &ParseError{Path: source, Message: strict.String(), Err: err}
		}
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return nil
}
