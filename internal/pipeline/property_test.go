package pipeline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/metrics"
)

func mustPipeline(opts ...config.Option) *Pipeline {
	cfg, err := config.New(opts...)
	if err != nil {
		panic(err)
	}
	p, err := New(cfg, metrics.New(true))
	if err != nil {
		panic(err)
	}
	return p
}

func runFrame(p *Pipeline, envs []event.Envelope, now time.Time) []Update {
	for _, e := range envs {
		p.ProcessEvent(e, now)
	}
	p.DrainQueue(len(envs))
	return p.Flush()
}

func TestPipelineProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("repeated selection surfaces once", prop.ForAll(
		func(n, anchor, head int) bool {
			p := mustPipeline()
			sel := event.NewSelection(event.Range{Anchor: anchor, Head: head})
			envs := make([]event.Envelope, n)
			for i := range envs {
				envs[i] = env(event.SelectionChanged{Doc: 4, View: 2, Selection: sel})
			}
			updates := runFrame(p, envs, epoch)
			if len(updates) != 1 {
				return false
			}
			sc, ok := updates[0].(SelectionsChanged)
			return ok && len(sc.Selections) == 1 && sc.Selections[0].Selection.Equal(sel)
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("documents changed is a set", prop.ForAll(
		func(docs []uint8) bool {
			p := mustPipeline()
			envs := make([]event.Envelope, len(docs))
			distinct := map[event.DocumentID]bool{}
			for i, d := range docs {
				id := event.DocumentID(d % 8)
				distinct[id] = true
				envs[i] = env(event.DocumentChanged{Doc: id, Change: event.ChangeInsert})
			}
			updates := runFrame(p, envs, epoch)
			if len(docs) == 0 {
				return len(updates) == 0
			}
			dc := updates[0].(DocumentsChanged)
			seen := map[event.DocumentID]bool{}
			for _, d := range dc.Documents {
				if seen[d.Doc] || !distinct[d.Doc] {
					return false
				}
				seen[d.Doc] = true
			}
			return len(updates) == 1 && len(seen) == len(distinct)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("at most one mode update, carrying the last transition", prop.ForAll(
		func(modes []uint8) bool {
			p := mustPipeline()
			envs := make([]event.Envelope, len(modes))
			for i, m := range modes {
				envs[i] = env(event.ModeChanged{Old: event.ModeNormal, New: event.Mode(m % 4)})
			}
			updates := runFrame(p, envs, epoch)
			if len(modes) == 0 {
				return len(updates) == 0
			}
			last := event.Mode(modes[len(modes)-1] % 4)
			return len(updates) == 1 && updates[0].(ModeChanged).New == last
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("user input is flushed before system before background", prop.ForAll(
		func(order []int) bool {
			payloads := []event.Envelope{
				event.NewEnvelope(event.DiagnosticsChanged{Doc: 1}, event.PriorityBackground, epoch),
				event.NewEnvelope(event.DocumentOpened{Doc: 1}, event.PrioritySystem, epoch),
				event.NewEnvelope(event.ModeChanged{New: event.ModeInsert}, event.PriorityUserInput, epoch),
			}
			envs := make([]event.Envelope, len(order))
			for i, o := range order {
				envs[i] = payloads[o]
			}
			updates := runFrame(mustPipeline(), envs, epoch)

			rank := map[Category]int{CategoryMode: 0, CategoryOpened: 1, CategoryDiagnostics: 2}
			for i := 1; i < len(updates); i++ {
				if rank[updates[i-1].Category()] >= rank[updates[i].Category()] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.Property("stale envelopes never reach a flush", prop.ForAll(
		func(ages []int) bool {
			const threshold = 100 * time.Millisecond
			p := mustPipeline(config.WithStaleAfter(threshold))
			now := epoch.Add(time.Hour)
			envs := make([]event.Envelope, len(ages))
			for i, ms := range ages {
				ts := now.Add(-time.Duration(ms) * time.Millisecond)
				envs[i] = event.NewEnvelope(event.DocumentOpened{Doc: event.DocumentID(ms)}, event.PrioritySystem, ts)
			}
			for _, u := range runFrame(p, envs, now) {
				for _, id := range u.(DocumentsOpened).Documents {
					if time.Duration(id)*time.Millisecond > threshold {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 300)),
	))

	properties.TestingRun(t)
}
