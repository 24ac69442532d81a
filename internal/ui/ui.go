// Package ui is the only place the bridge touches the UI runtime.
//
// The frame loop hands every flushed update to a Sink and asks a Redrawer for
// a new frame. Both are thin: ScreenSink forwards updates into a tcell
// screen's own event queue, where the UI loop picks them up with IsUpdate
// like any other event.
package ui

import (
	"sync"

	"github.com/dshills/keybridge/internal/pipeline"
)

// Sink receives batched updates on the frame loop.
type Sink interface {
	Emit(u pipeline.Update)
}

// Redrawer is asked for a new frame after updates were emitted.
type Redrawer interface {
	RequestRedraw()
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(u pipeline.Update)

// Emit implements Sink.
func (f SinkFunc) Emit(u pipeline.Update) { f(u) }

// RedrawFunc adapts a function to Redrawer.
type RedrawFunc func()

// RequestRedraw implements Redrawer.
func (f RedrawFunc) RequestRedraw() { f() }

// Discard is a Sink and Redrawer that ignores everything.
var Discard discard

type discard struct{}

func (discard) Emit(pipeline.Update) {}
func (discard) RequestRedraw()       {}

// Recorder keeps every update and counts redraw requests.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	updates []pipeline.Update
	redraws int
}

// Emit implements Sink.
func (r *Recorder) Emit(u pipeline.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

// RequestRedraw implements Redrawer.
func (r *Recorder) RequestRedraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redraws++
}

// Updates returns a copy of the recorded updates.
func (r *Recorder) Updates() []pipeline.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Update(nil), r.updates...)
}

// Redraws returns the number of redraw requests.
func (r *Recorder) Redraws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redraws
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
	r.redraws = 0
}
