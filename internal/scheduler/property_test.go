package scheduler

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dshills/keybridge/internal/bridge"
	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/eventlog"
	"github.com/dshills/keybridge/internal/metrics"
	"github.com/dshills/keybridge/internal/pipeline"
)

func TestDeliveryProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("every envelope within capacity is received once in send order", prop.ForAll(
		func(capacity, perFrame int, kinds []uint8) bool {
			perFrame = min(perFrame, capacity)
			cfg, err := config.New(
				config.WithChannelCapacity(capacity),
				config.WithMaxEventsPerFrame(perFrame),
				config.WithMinEventsPerFrame(1),
				config.WithStaleAfter(0),
			)
			if err != nil {
				return false
			}
			m := metrics.New(true)
			b := bridge.New(cfg, nil, m)
			p, err := pipeline.New(cfg, m)
			if err != nil {
				return false
			}
			log := eventlog.New(capacity)
			s := New(cfg, b, p, WithEventLog(log))

			sent := min(len(kinds), capacity)
			for i := 0; i < sent; i++ {
				doc := event.DocumentID(i)
				var payload event.Payload = event.DocumentOpened{Doc: doc}
				if kinds[i]%2 == 1 {
					payload = event.DiagnosticsChanged{Doc: doc, Errors: i}
				}
				if !b.Send(payload, event.DefaultPriority(payload.Kind())).Accepted() {
					return false
				}
			}

			for frames := 0; frames <= sent; frames++ {
				if _, err := s.Step(); err != nil {
					return false
				}
			}
			if m.Received() != uint64(sent) || log.Len() != sent {
				return false
			}

			var last uint64
			for e := range log.All() {
				if e.Envelope.Seq() <= last {
					return false
				}
				last = e.Envelope.Seq()
			}
			return true
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
