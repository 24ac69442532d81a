package recovery

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dshills/keybridge/internal/config"
)

// drive polls m once per tick until it leaves Reconnecting or ticks run out.
func drive(m *Manager, ticks int) (reconnected bool, exhausted bool) {
	now := epoch
	for i := 0; i < ticks; i++ {
		now = now.Add(time.Second)
		b, err := m.Poll(now)
		if err != nil {
			return false, true
		}
		if b != nil {
			b.Close()
			return true, false
		}
	}
	return false, false
}

func TestRecoveryProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("responsive core reconnects within max attempts", prop.ForAll(
		func(maxAttempts, failures int) bool {
			failures %= maxAttempts
			cfg, err := config.New(config.WithRecovery(time.Millisecond, 4, maxAttempts))
			if err != nil {
				return false
			}
			d := &scriptedDialer{cfg: cfg, failures: failures}
			m := New(cfg, d.dial, WithBackOff(&backoff.ZeroBackOff{}))
			m.Disconnected(epoch)

			ok, exhausted := drive(m, maxAttempts+1)
			return ok && !exhausted && d.calls == failures+1 && m.State() == StateConnected
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 100),
	))

	properties.Property("unresponsive core fails after exactly max attempts", prop.ForAll(
		func(maxAttempts, extra int) bool {
			cfg, err := config.New(config.WithRecovery(time.Millisecond, 4, maxAttempts))
			if err != nil {
				return false
			}
			d := &scriptedDialer{cfg: cfg, failures: maxAttempts + extra}
			m := New(cfg, d.dial, WithBackOff(&backoff.ZeroBackOff{}))
			m.Disconnected(epoch)

			ok, exhausted := drive(m, maxAttempts*2+1)
			return !ok && exhausted && d.calls == maxAttempts && m.State() == StateFailed
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 5),
	))

	properties.Property("delays stay within jittered exponential bounds", prop.ForAll(
		func(baseMs, maxExp, attempts int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			cfg, err := config.New(config.WithRecovery(base, maxExp, 8))
			if err != nil {
				return false
			}
			b := NewBackOff(cfg)
			for a := 0; a < attempts; a++ {
				nominal := float64(base << min(a, maxExp))
				got := float64(b.NextBackOff())
				if got < nominal*0.75-1 || got > nominal*1.25+1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 200),
		gen.IntRange(0, 6),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
