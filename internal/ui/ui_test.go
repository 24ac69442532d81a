package ui

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/pipeline"
)

func nextInterrupt(t *testing.T, s tcell.Screen) tcell.Event {
	t.Helper()
	for range 16 {
		ev := s.PollEvent()
		require.NotNil(t, ev, "screen finalized before interrupt arrived")
		if _, ok := ev.(*tcell.EventInterrupt); ok {
			return ev
		}
	}
	t.Fatal("no interrupt event")
	return nil
}

func TestScreenSink(t *testing.T) {
	screen := tcell.NewSimulationScreen("")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)

	sink := NewScreenSink(screen)
	update := pipeline.ModeChanged{Old: event.ModeNormal, New: event.ModeInsert}
	sink.Emit(update)
	sink.RequestRedraw()

	ev := nextInterrupt(t, screen)
	got, ok := IsUpdate(ev)
	require.True(t, ok)
	assert.Equal(t, update, got)
	assert.False(t, IsRedraw(ev))

	ev = nextInterrupt(t, screen)
	assert.True(t, IsRedraw(ev))
	_, ok = IsUpdate(ev)
	assert.False(t, ok)

	assert.Zero(t, sink.Failures())
}

func TestIsUpdateIgnoresOtherEvents(t *testing.T) {
	_, ok := IsUpdate(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	assert.False(t, ok)
	assert.False(t, IsRedraw(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))

	_, ok = IsUpdate(tcell.NewEventInterrupt("unrelated"))
	assert.False(t, ok)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var sink Sink = &r
	var redrawer Redrawer = &r

	sink.Emit(pipeline.ViewFocused{View: 1})
	sink.Emit(pipeline.ViewFocused{View: 2})
	redrawer.RequestRedraw()

	assert.Equal(t, []pipeline.Update{pipeline.ViewFocused{View: 1}, pipeline.ViewFocused{View: 2}}, r.Updates())
	assert.Equal(t, 1, r.Redraws())

	r.Reset()
	assert.Empty(t, r.Updates())
	assert.Zero(t, r.Redraws())
}

func TestAdapters(t *testing.T) {
	var emitted []pipeline.Update
	var redraws int

	SinkFunc(func(u pipeline.Update) { emitted = append(emitted, u) }).Emit(pipeline.ViewFocused{})
	RedrawFunc(func() { redraws++ }).RequestRedraw()
	Discard.Emit(pipeline.ViewFocused{})
	Discard.RequestRedraw()

	assert.Len(t, emitted, 1)
	assert.Equal(t, 1, redraws)
}
