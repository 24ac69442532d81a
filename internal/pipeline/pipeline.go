package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/metrics"
)

// Disposition is what ProcessEvent did with an envelope.
type Disposition uint8

const (
	// Queued means the envelope waits in the priority queue.
	Queued Disposition = iota

	// Batched means the envelope went straight to the batcher.
	Batched

	// Filtered means a filter rejected the envelope.
	Filtered

	// Deduplicated means the envelope repeated a retained value.
	Deduplicated
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case Queued:
		return "queued"
	case Batched:
		return "batched"
	case Filtered:
		return "filtered"
	case Deduplicated:
		return "deduplicated"
	default:
		return fmt.Sprintf("disposition(%d)", uint8(d))
	}
}

// Stats counts what one pipeline instance has done.
type Stats struct {
	Processed    uint64
	Filtered     uint64
	Deduplicated uint64
	Batched      uint64
	Flushes      uint64
	Updates      uint64
	Queued       int
}

// Pipeline runs filter, deduplicate, optional priority queue and batch.
// It belongs to the frame loop and is not safe for concurrent use.
type Pipeline struct {
	filters []Filter
	dedup   Deduplicator
	queue   *PriorityQueue
	batcher Batcher
	metrics *metrics.Metrics
	logger  *zap.Logger

	stats Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFilters appends filters after the configured ones.
func WithFilters(filters ...Filter) Option {
	return func(p *Pipeline) {
		p.filters = append(p.filters, filters...)
	}
}

// WithoutFilters removes every filter, including the staleness filter.
func WithoutFilters() Option {
	return func(p *Pipeline) {
		p.filters = nil
	}
}

// WithDeduplicator replaces the deduplicator. Nil disables deduplication.
func WithDeduplicator(d Deduplicator) Option {
	return func(p *Pipeline) {
		p.dedup = d
	}
}

// WithBatcher replaces the batcher.
func WithBatcher(b Batcher) Option {
	return func(p *Pipeline) {
		if b != nil {
			p.batcher = b
		}
	}
}

// WithQueue replaces the priority queue. Nil disables queueing.
func WithQueue(q *PriorityQueue) Option {
	return func(p *Pipeline) {
		p.queue = q
	}
}

// WithLogger sets the logger. The pipeline logs under the "pipeline" name.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds the standard pipeline for cfg: a staleness filter when
// cfg.StaleAfter is set, a selection deduplicator, a priority queue when
// cfg.PriorityQueue is set, and a coalescing batcher.
func New(cfg config.Config, m *metrics.Metrics, opts ...Option) (*Pipeline, error) {
	if m == nil {
		m = metrics.New(cfg.MetricsEnabled)
	}

	dedup, err := NewSelectionDeduplicator(cfg.DedupCapacity)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		dedup:   dedup,
		batcher: NewCoalescingBatcher(),
		metrics: m,
		logger:  zap.NewNop(),
	}
	if cfg.StaleAfter > 0 {
		p.filters = append(p.filters, NewStalenessFilter(cfg.StaleAfter, m))
	}
	if cfg.PriorityQueue {
		p.queue = NewPriorityQueue()
	}

	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p, nil
}

// ProcessEvent runs env through the filters and the deduplicator, then
// queues or batches it. The first rejection stops processing.
func (p *Pipeline) ProcessEvent(env event.Envelope, now time.Time) Disposition {
	p.stats.Processed++

	for _, f := range p.filters {
		if !f.Accept(env, now) {
			p.stats.Filtered++
			p.metrics.IncFiltered()
			if ce := p.logger.Check(zap.DebugLevel, "envelope filtered"); ce != nil {
				ce.Write(zap.String("filter", f.Name()), zap.Stringer("envelope", env))
			}
			return Filtered
		}
	}

	if p.dedup != nil && p.dedup.Duplicate(env) {
		p.stats.Deduplicated++
		p.metrics.IncDeduplicated()
		return Deduplicated
	}

	if p.queue != nil {
		p.queue.Push(env)
		return Queued
	}
	p.batcher.Add(env)
	p.stats.Batched++
	return Batched
}

// DrainQueue moves up to limit envelopes from the priority queue into the
// batcher, highest priority first, and returns how many moved.
func (p *Pipeline) DrainQueue(limit int) int {
	if p.queue == nil {
		return 0
	}

	moved := 0
	for moved < limit {
		env, ok := p.queue.Pop()
		if !ok {
			break
		}
		p.batcher.Add(env)
		moved++
	}
	p.stats.Batched += uint64(moved)
	return moved
}

// Flush returns the coalesced updates accumulated since the previous flush.
func (p *Pipeline) Flush() []Update {
	updates := p.batcher.Flush()
	p.stats.Flushes++
	p.stats.Updates += uint64(len(updates))
	return updates
}

// HasQueue reports whether the priority queue stage is active.
func (p *Pipeline) HasQueue() bool {
	return p.queue != nil
}

// Filters returns the active filters in evaluation order.
func (p *Pipeline) Filters() []Filter {
	return append([]Filter(nil), p.filters...)
}

// Stats returns this pipeline's counters.
func (p *Pipeline) Stats() Stats {
	s := p.stats
	if p.queue != nil {
		s.Queued = p.queue.Len()
	}
	return s
}
