package ui

import (
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keybridge/internal/pipeline"
)

// redrawRequest marks an interrupt event that asks for a new frame.
type redrawRequest struct{}

// ScreenSink posts updates and redraw requests into a tcell screen's event
// queue as *tcell.EventInterrupt values.
//
// Posting never blocks. When the screen's queue is full the event is lost
// and counted in Failures.
type ScreenSink struct {
	screen   tcell.Screen
	failures atomic.Uint64
}

// NewScreenSink creates a sink for an initialized screen.
func NewScreenSink(screen tcell.Screen) *ScreenSink {
	return &ScreenSink{screen: screen}
}

// Emit implements Sink.
func (s *ScreenSink) Emit(u pipeline.Update) {
	s.post(u)
}

// RequestRedraw implements Redrawer.
func (s *ScreenSink) RequestRedraw() {
	s.post(redrawRequest{})
}

func (s *ScreenSink) post(data any) {
	if err := s.screen.PostEvent(tcell.NewEventInterrupt(data)); err != nil {
		s.failures.Add(1)
	}
}

// Failures returns how many events could not be posted.
func (s *ScreenSink) Failures() uint64 {
	return s.failures.Load()
}

// IsUpdate extracts a batched update posted by a ScreenSink.
func IsUpdate(ev tcell.Event) (pipeline.Update, bool) {
	intr, ok := ev.(*tcell.EventInterrupt)
	if !ok {
		return nil, false
	}
	u, ok := intr.Data().(pipeline.Update)
	return u, ok
}

// IsRedraw reports whether ev is a redraw request posted by a ScreenSink.
func IsRedraw(ev tcell.Event) bool {
	intr, ok := ev.(*tcell.EventInterrupt)
	if !ok {
		return false
	}
	_, ok = intr.Data().(redrawRequest)
	return ok
}
