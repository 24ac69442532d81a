package metrics

import (
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
)

// Metrics tracks bridge and pipeline activity.
type Metrics struct {
	enabled bool

	// Producer side
	sent                atomic.Uint64
	dropped             atomic.Uint64
	backpressureEngaged atomic.Uint64

	// Consumer side
	received       atomic.Uint64
	stale          atomic.Uint64
	filtered       atomic.Uint64
	deduplicated   atomic.Uint64
	updatesEmitted atomic.Uint64
	redraws        atomic.Uint64

	// Event age in microseconds, summed for the running average.
	// The sum saturates instead of wrapping.
	ageSumUs atomic.Uint64
	ageCount atomic.Uint64

	// Frame timing
	frameCount  atomic.Uint64
	frameMinNs  atomic.Int64
	frameMaxNs  atomic.Int64
	frameCostNs atomic.Int64 // moving average published by the scheduler
	frameBudget atomic.Int64

	startTime atomic.Int64
}

// New creates a metrics tracker. When enabled is false, age and frame
// accounting is skipped.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}
	m.frameMinNs.Store(math.MaxInt64)
	m.startTime.Store(time.Now().UnixNano())
	return m
}

// Enabled reports whether age and frame accounting is on.
func (m *Metrics) Enabled() bool {
	return m.enabled
}

// IncSent records an envelope accepted by the channel.
func (m *Metrics) IncSent() {
	m.sent.Add(1)
}

// IncDropped records an envelope that never reached the channel.
func (m *Metrics) IncDropped() {
	m.dropped.Add(1)
}

// IncBackpressure records a send that found the channel full or was shed.
func (m *Metrics) IncBackpressure() {
	m.backpressureEngaged.Add(1)
}

// IncReceived records an envelope drained from the channel.
func (m *Metrics) IncReceived() {
	m.received.Add(1)
}

// IncStale records an envelope rejected for its age.
func (m *Metrics) IncStale() {
	m.stale.Add(1)
}

// IncFiltered records an envelope rejected by any filter.
func (m *Metrics) IncFiltered() {
	m.filtered.Add(1)
}

// IncDeduplicated records an envelope rejected as a repeat.
func (m *Metrics) IncDeduplicated() {
	m.deduplicated.Add(1)
}

// AddUpdates records n batched updates emitted to the UI.
func (m *Metrics) AddUpdates(n int) {
	if n > 0 {
		m.updatesEmitted.Add(uint64(n))
	}
}

// IncRedraw records a redraw request.
func (m *Metrics) IncRedraw() {
	m.redraws.Add(1)
}

// RecordAge adds one observed event age to the running average.
func (m *Metrics) RecordAge(age time.Duration) {
	if !m.enabled {
		return
	}
	if age < 0 {
		age = 0
	}
	us := uint64(age.Microseconds())
	for {
		old := m.ageSumUs.Load()
		sum := old + us
		if sum < old {
			sum = math.MaxUint64
		}
		if m.ageSumUs.CompareAndSwap(old, sum) {
			break
		}
	}
	m.ageCount.Add(1)
}

// AverageEventAge returns the mean age of every recorded event, to the
// microsecond.
func (m *Metrics) AverageEventAge() time.Duration {
	count := m.ageCount.Load()
	if count == 0 {
		return 0
	}
	avg := m.ageSumUs.Load() / count
	if avg > math.MaxInt64/uint64(time.Microsecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(avg) * time.Microsecond
}

// RecordFrame records the duration of one scheduler step.
func (m *Metrics) RecordFrame(duration time.Duration) {
	if !m.enabled {
		return
	}
	ns := duration.Nanoseconds()
	m.frameCount.Add(1)

	for {
		old := m.frameMinNs.Load()
		if ns >= old || m.frameMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.frameMaxNs.Load()
		if ns <= old || m.frameMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// SetFrameCost publishes the scheduler's moving average of step duration.
// The Adaptive backpressure strategy reads it from the producer side.
func (m *Metrics) SetFrameCost(cost time.Duration) {
	if !m.enabled {
		return
	}
	m.frameCostNs.Store(cost.Nanoseconds())
}

// FrameCost returns the last published step-duration average.
func (m *Metrics) FrameCost() time.Duration {
	return time.Duration(m.frameCostNs.Load())
}

// SetFrameBudget publishes the scheduler's current per-frame drain budget.
func (m *Metrics) SetFrameBudget(n int) {
	m.frameBudget.Store(int64(n))
}

// FrameBudget returns the last published drain budget.
func (m *Metrics) FrameBudget() int {
	return int(m.frameBudget.Load())
}

func (m *Metrics) Sent() uint64                { return m.sent.Load() }
func (m *Metrics) Dropped() uint64             { return m.dropped.Load() }
func (m *Metrics) BackpressureEngaged() uint64 { return m.backpressureEngaged.Load() }
func (m *Metrics) Received() uint64            { return m.received.Load() }
func (m *Metrics) Stale() uint64               { return m.stale.Load() }
func (m *Metrics) Filtered() uint64            { return m.filtered.Load() }
func (m *Metrics) Deduplicated() uint64        { return m.deduplicated.Load() }
func (m *Metrics) UpdatesEmitted() uint64      { return m.updatesEmitted.Load() }
func (m *Metrics) Redraws() uint64             { return m.redraws.Load() }

// Snapshot returns a point-in-time copy of every value.
func (m *Metrics) Snapshot() Snapshot {
	minFrame := m.frameMinNs.Load()
	if minFrame == math.MaxInt64 {
		minFrame = 0
	}

	return Snapshot{
		Uptime:              time.Since(time.Unix(0, m.startTime.Load())),
		Sent:                m.sent.Load(),
		Dropped:             m.dropped.Load(),
		BackpressureEngaged: m.backpressureEngaged.Load(),
		Received:            m.received.Load(),
		Stale:               m.stale.Load(),
		Filtered:            m.filtered.Load(),
		Deduplicated:        m.deduplicated.Load(),
		UpdatesEmitted:      m.updatesEmitted.Load(),
		Redraws:             m.redraws.Load(),
		AverageEventAge:     m.AverageEventAge(),
		Frames:              m.frameCount.Load(),
		MinFrame:            time.Duration(minFrame),
		MaxFrame:            time.Duration(m.frameMaxNs.Load()),
		FrameCost:           m.FrameCost(),
		FrameBudget:         m.FrameBudget(),
	}
}

// Reset zeroes every counter and the running average. It is meant for
// explicit operator action; the pipeline never calls it.
func (m *Metrics) Reset() {
	m.sent.Store(0)
	m.dropped.Store(0)
	m.backpressureEngaged.Store(0)
	m.received.Store(0)
	m.stale.Store(0)
	m.filtered.Store(0)
	m.deduplicated.Store(0)
	m.updatesEmitted.Store(0)
	m.redraws.Store(0)
	m.ageSumUs.Store(0)
	m.ageCount.Store(0)
	m.frameCount.Store(0)
	m.frameMinNs.Store(math.MaxInt64)
	m.frameMaxNs.Store(0)
	m.startTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time view of Metrics.
type Snapshot struct {
	Uptime time.Duration

	Sent                uint64
	Dropped             uint64
	BackpressureEngaged uint64

	Received       uint64
	Stale          uint64
	Filtered       uint64
	Deduplicated   uint64
	UpdatesEmitted uint64
	Redraws        uint64

	AverageEventAge time.Duration

	Frames      uint64
	MinFrame    time.Duration
	MaxFrame    time.Duration
	FrameCost   time.Duration
	FrameBudget int
}

// MarshalLogObject implements zapcore.ObjectMarshaler so a snapshot can be
// logged with zap.Object.
func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddDuration("uptime", s.Uptime)
	enc.AddUint64("sent", s.Sent)
	enc.AddUint64("dropped", s.Dropped)
	enc.AddUint64("backpressure_engaged", s.BackpressureEngaged)
	enc.AddUint64("received", s.Received)
	enc.AddUint64("stale", s.Stale)
	enc.AddUint64("filtered", s.Filtered)
	enc.AddUint64("deduplicated", s.Deduplicated)
	enc.AddUint64("updates_emitted", s.UpdatesEmitted)
	enc.AddUint64("redraws", s.Redraws)
	enc.AddDuration("average_event_age", s.AverageEventAge)
	enc.AddUint64("frames", s.Frames)
	enc.AddDuration("frame_cost", s.FrameCost)
	enc.AddInt("frame_budget", s.FrameBudget)
	return nil
}
