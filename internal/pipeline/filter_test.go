package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/metrics"
)

func TestStalenessFilter(t *testing.T) {
	m := metrics.New(true)
	f := NewStalenessFilter(100*time.Millisecond, m)
	e := env(event.DocumentOpened{Doc: 1})

	assert.True(t, f.Accept(e, epoch))
	assert.True(t, f.Accept(e, epoch.Add(100*time.Millisecond)))
	assert.False(t, f.Accept(e, epoch.Add(101*time.Millisecond)))
	assert.True(t, f.Accept(e, epoch.Add(-time.Second)))
	assert.Equal(t, uint64(1), m.Stale())
	assert.Equal(t, "staleness", f.Name())
}

func TestStalenessFilterDisabled(t *testing.T) {
	f := NewStalenessFilter(0, nil)
	assert.True(t, f.Accept(env(event.DocumentOpened{}), epoch.Add(time.Hour)))
}

func TestKindFilter(t *testing.T) {
	f := NewKindFilter(event.KindDiagnosticsChanged, event.KindViewFocused)
	assert.False(t, f.Accept(env(event.DiagnosticsChanged{}), epoch))
	assert.False(t, f.Accept(env(event.ViewFocused{}), epoch))
	assert.True(t, f.Accept(env(event.ModeChanged{}), epoch))
}

func TestFilterFunc(t *testing.T) {
	f := NewFilterFunc("user-only", func(e event.Envelope, _ time.Time) bool {
		return e.Priority() == event.PriorityUserInput
	})
	assert.Equal(t, "user-only", f.Name())
	assert.True(t, f.Accept(env(event.ModeChanged{}), epoch))
	assert.False(t, f.Accept(env(event.DocumentOpened{}), epoch))

	assert.True(t, NewFilterFunc("nil", nil).Accept(env(event.DocumentOpened{}), epoch))
}
