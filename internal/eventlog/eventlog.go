// Package eventlog keeps a bounded history of received envelopes for replay
// and offline diagnosis. The log lives in memory only; DumpTo and DumpToFile
// write a report when an operator asks for one.
package eventlog

import (
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/multierr"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
)

// Entry is one recorded envelope.
type Entry struct {
	// Index is the position of the entry in the log's lifetime, starting at 1.
	// It keeps increasing across evictions and Clear.
	Index uint64

	Envelope   event.Envelope
	RecordedAt time.Time
}

// Log is a fixed-capacity ring of entries. When full, Record evicts the
// oldest entry. All methods are safe for concurrent use.
type Log struct {
	mu sync.RWMutex

	entries []Entry
	head    int // index of oldest entry
	count   int
	next    uint64

	now func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source used for RecordedAt, ages and ReplayLast.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a log holding at most capacity entries.
// A non-positive capacity uses config.DefaultEventLogCapacity.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = config.DefaultEventLogCapacity
	}
	l := &Log{
		entries: make([]Entry, capacity),
		next:    1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends env, evicting the oldest entry when the log is full.
func (l *Log) Record(env event.Envelope) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.head + l.count) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	} else {
		l.head = (l.head + 1) % len(l.entries)
	}
	l.entries[idx] = Entry{Index: l.next, Envelope: env, RecordedAt: now}
	l.next++
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap returns the log capacity.
func (l *Log) Cap() int {
	return len(l.entries)
}

// Total returns how many envelopes were ever recorded.
func (l *Log) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next - 1
}

// Clear removes every entry. Indices keep increasing afterwards.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.entries)
	l.head = 0
	l.count = 0
}

// ReplayFrom yields the entries whose envelope timestamp is at or after ts,
// oldest first.
//
// The sequence is lazy and can be ranged over any number of times; each
// iteration sees the log as it is when the iteration starts. Yielded pointers
// refer into the ring and stay valid until the entry is evicted. The loop body
// must not call Record or Clear on the same log.
func (l *Log) ReplayFrom(ts time.Time) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()

		for i := 0; i < l.count; i++ {
			e := &l.entries[(l.head+i)%len(l.entries)]
			if e.Envelope.Timestamp().Before(ts) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// ReplayLast yields the entries created within d of the time the iteration
// starts. See ReplayFrom.
func (l *Log) ReplayLast(d time.Duration) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		l.ReplayFrom(l.now().Add(-d))(yield)
	}
}

// All yields every entry, oldest first.
func (l *Log) All() iter.Seq[*Entry] {
	return l.ReplayFrom(time.Time{})
}

// DumpTo writes a human-readable listing of the log to w: one line per entry
// with its index, payload, priority and age.
func (l *Log) DumpTo(w io.Writer) error {
	now := l.now()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	l.mu.RLock()
	count, total := l.count, l.next-1
	l.mu.RUnlock()

	fmt.Fprintf(tw, "# event log: %d of %d recorded, capacity %d\n", count, total, len(l.entries))
	fmt.Fprintln(tw, "INDEX\tSEQ\tPRIORITY\tAGE\tPAYLOAD")
	for e := range l.All() {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			e.Index,
			e.Envelope.Seq(),
			e.Envelope.Priority(),
			e.Envelope.Age(now).Round(time.Microsecond),
			event.Describe(e.Envelope.Payload()))
	}
	return tw.Flush()
}

// DumpToFile writes the DumpTo listing to path, replacing any existing file.
func (l *Log) DumpToFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dump: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	return l.DumpTo(f)
}
