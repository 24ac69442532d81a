package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/hook"
)

// simulator plays the editing core: it fires a weighted mix of notifications
// through the hook manager the way an interactive session would.
type simulator struct {
	hooks *hook.Manager
	rng   *rand.Rand

	docs   int
	views  int
	mode   event.Mode
	cursor int
	last   *hook.Notification
	fired  uint64
}

func newSimulator(hooks *hook.Manager, seed uint64) *simulator {
	return &simulator{
		hooks: hooks,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		docs:  8,
		views: 3,
	}
}

// run fires about rate notifications per second until ctx is done and
// returns how many were fired.
func (s *simulator) run(ctx context.Context, rate int) uint64 {
	const tick = time.Millisecond
	perTick := max(1, rate/int(time.Second/tick))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.fired
		case <-ticker.C:
			for i := 0; i < perTick; i++ {
				s.fire(s.next())
			}
		}
	}
}

func (s *simulator) fire(n *hook.Notification) {
	s.hooks.Fire(n)
	s.fired++
}

// next picks the next notification. Cursor movement dominates, as it does
// when someone is typing, and a fifth of selections repeat the previous one.
func (s *simulator) next() *hook.Notification {
	doc := event.DocumentID(s.rng.IntN(s.docs) + 1)
	view := event.ViewID(s.rng.IntN(s.views) + 1)

	switch roll := s.rng.IntN(100); {
	case roll < 40:
		if s.last != nil && s.rng.IntN(5) == 0 {
			return s.last
		}
		s.cursor += s.rng.IntN(7) - 3
		s.cursor = max(s.cursor, 0)
		n := &hook.Notification{
			Kind:   event.KindSelectionChanged,
			Doc:    doc,
			View:   view,
			Ranges: []event.Range{{Anchor: s.cursor, Head: s.cursor + s.rng.IntN(3)}},
		}
		s.last = n
		return n
	case roll < 60:
		ops := make([]event.OpKind, s.rng.IntN(4)+1)
		for i := range ops {
			ops[i] = event.OpKind(s.rng.IntN(3))
		}
		return &hook.Notification{Kind: event.KindDocumentChanged, Doc: doc, Ops: ops}
	case roll < 70:
		return &hook.Notification{Kind: event.KindDiagnosticsChanged, Doc: doc,
			Errors: s.rng.IntN(5), Warnings: s.rng.IntN(20)}
	case roll < 75:
		old := s.mode
		s.mode = event.Mode(s.rng.IntN(4))
		return &hook.Notification{Kind: event.KindModeChanged, OldMode: old, NewMode: s.mode}
	case roll < 80:
		var char rune
		if s.rng.IntN(2) == 0 {
			char = '.'
		}
		return &hook.Notification{Kind: event.KindCompletionRequested, Doc: doc, View: view, Char: char}
	case roll < 83:
		return &hook.Notification{Kind: event.KindDocumentOpened, Doc: doc}
	case roll < 85:
		return &hook.Notification{Kind: event.KindDocumentClosed, Doc: doc, Modified: s.rng.IntN(2) == 0}
	case roll < 90:
		return &hook.Notification{Kind: event.KindViewFocused, View: view}
	case roll < 95:
		server := event.ServerID(s.rng.IntN(2) + 1)
		if s.rng.IntN(4) == 0 {
			return &hook.Notification{Kind: event.KindLanguageServerExited, Server: server}
		}
		return &hook.Notification{Kind: event.KindLanguageServerInitialized, Server: server}
	default:
		return &hook.Notification{Kind: event.KindPickerRequested,
			Picker: event.PickerKind(s.rng.IntN(3)), Workspace: s.rng.IntN(2) == 0}
	}
}
