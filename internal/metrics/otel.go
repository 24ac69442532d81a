package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

// InstrumentPrefix prefixes every exported instrument name.
const InstrumentPrefix = "keybridge."

type counterDef struct {
	name string
	desc string
	read func(Snapshot) uint64
}

var counterDefs = []counterDef{
	{"events.sent", "Envelopes accepted by the channel", func(s Snapshot) uint64 { return s.Sent }},
	{"events.dropped", "Envelopes dropped by backpressure", func(s Snapshot) uint64 { return s.Dropped }},
	{"backpressure.engaged", "Sends that found the channel full or were shed", func(s Snapshot) uint64 { return s.BackpressureEngaged }},
	{"events.received", "Envelopes drained by the frame loop", func(s Snapshot) uint64 { return s.Received }},
	{"events.stale", "Envelopes discarded for age", func(s Snapshot) uint64 { return s.Stale }},
	{"events.filtered", "Envelopes rejected by a filter", func(s Snapshot) uint64 { return s.Filtered }},
	{"events.deduplicated", "Envelopes rejected as repeats", func(s Snapshot) uint64 { return s.Deduplicated }},
	{"updates.emitted", "Batched updates sent to the UI", func(s Snapshot) uint64 { return s.UpdatesEmitted }},
	{"redraws", "Redraw requests", func(s Snapshot) uint64 { return s.Redraws }},
}

// Export registers observable instruments on meter that poll m on every
// collection. Unregister the returned registration to stop exporting.
func Export(meter metric.Meter, m *Metrics) (metric.Registration, error) {
	var errs error

	counters := make([]metric.Int64ObservableCounter, len(counterDefs))
	for i, def := range counterDefs {
		c, err := meter.Int64ObservableCounter(InstrumentPrefix+def.name, metric.WithDescription(def.desc))
		errs = multierr.Append(errs, err)
		counters[i] = c
	}

	age, err := meter.Float64ObservableGauge(InstrumentPrefix+"events.average_age",
		metric.WithDescription("Running average event age"), metric.WithUnit("ms"))
	errs = multierr.Append(errs, err)

	cost, err := meter.Float64ObservableGauge(InstrumentPrefix+"frame.cost",
		metric.WithDescription("Moving average of frame step duration"), metric.WithUnit("ms"))
	errs = multierr.Append(errs, err)

	budget, err := meter.Int64ObservableGauge(InstrumentPrefix+"frame.budget",
		metric.WithDescription("Current per-frame drain budget"))
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, fmt.Errorf("creating instruments: %w", errs)
	}

	observables := make([]metric.Observable, 0, len(counters)+3)
	for _, c := range counters {
		observables = append(observables, c)
	}
	observables = append(observables, age, cost, budget)

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := m.Snapshot()
		for i, def := range counterDefs {
			o.ObserveInt64(counters[i], int64(def.read(s)))
		}
		o.ObserveFloat64(age, float64(s.AverageEventAge.Microseconds())/1000)
		o.ObserveFloat64(cost, float64(s.FrameCost.Microseconds())/1000)
		o.ObserveInt64(budget, int64(s.FrameBudget))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("registering callback: %w", err)
	}
	return reg, nil
}
