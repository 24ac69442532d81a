package pipeline

import (
	"time"

	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/metrics"
)

// Filter decides whether an envelope is processed at all.
type Filter interface {
	// Name identifies the filter in logs and stats.
	Name() string

	// Accept reports whether env should continue through the pipeline.
	Accept(env event.Envelope, now time.Time) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc struct {
	name string
	fn   func(env event.Envelope, now time.Time) bool
}

// NewFilterFunc creates a named Filter from fn.
func NewFilterFunc(name string, fn func(env event.Envelope, now time.Time) bool) *FilterFunc {
	return &FilterFunc{name: name, fn: fn}
}

// Name implements Filter.
func (f *FilterFunc) Name() string { return f.name }

// Accept implements Filter. A nil function accepts everything.
func (f *FilterFunc) Accept(env event.Envelope, now time.Time) bool {
	if f.fn == nil {
		return true
	}
	return f.fn(env, now)
}

// StalenessFilter rejects envelopes older than MaxAge. The UI would only act
// on state that has since changed again.
type StalenessFilter struct {
	MaxAge  time.Duration
	Metrics *metrics.Metrics
}

// NewStalenessFilter creates a staleness filter that counts rejections in m.
func NewStalenessFilter(maxAge time.Duration, m *metrics.Metrics) *StalenessFilter {
	return &StalenessFilter{MaxAge: maxAge, Metrics: m}
}

// Name implements Filter.
func (*StalenessFilter) Name() string { return "staleness" }

// Accept implements Filter. A non-positive MaxAge accepts everything.
func (f *StalenessFilter) Accept(env event.Envelope, now time.Time) bool {
	if f.MaxAge <= 0 || env.Age(now) <= f.MaxAge {
		return true
	}
	if f.Metrics != nil {
		f.Metrics.IncStale()
	}
	return false
}

// KindFilter drops every envelope whose kind is listed.
type KindFilter struct {
	drop map[event.Kind]bool
}

// NewKindFilter creates a filter rejecting kinds.
func NewKindFilter(kinds ...event.Kind) *KindFilter {
	f := &KindFilter{drop: make(map[event.Kind]bool, len(kinds))}
	for _, k := range kinds {
		f.drop[k] = true
	}
	return f
}

// Name implements Filter.
func (*KindFilter) Name() string { return "kind" }

// Accept implements Filter.
func (f *KindFilter) Accept(env event.Envelope, _ time.Time) bool {
	return !f.drop[env.Kind()]
}
