package pipeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/keybridge/internal/event"
)

// Deduplicator rejects envelopes that repeat what was already retained.
type Deduplicator interface {
	// Name identifies the deduplicator in logs.
	Name() string

	// Duplicate reports whether env repeats the last retained value for its
	// key. A non-duplicate becomes the new retained value.
	Duplicate(env event.Envelope) bool

	// Reset forgets every retained value.
	Reset()
}

// SelectionDeduplicator drops SelectionChanged envelopes identical to the
// last one retained for the same (view, document). Other kinds pass.
//
// Retained selections live in a bounded LRU, so a key that has not moved for
// a long time may be forgotten and its next identical selection let through.
// Retained state survives flushes.
type SelectionDeduplicator struct {
	last *lru.Cache[selectionKey, event.Selection]
}

// NewSelectionDeduplicator creates a deduplicator remembering up to capacity keys.
func NewSelectionDeduplicator(capacity int) (*SelectionDeduplicator, error) {
	cache, err := lru.New[selectionKey, event.Selection](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating selection cache: %w", err)
	}
	return &SelectionDeduplicator{last: cache}, nil
}

// Name implements Deduplicator.
func (*SelectionDeduplicator) Name() string { return "selection" }

// Duplicate implements Deduplicator.
func (d *SelectionDeduplicator) Duplicate(env event.Envelope) bool {
	sel, ok := env.Payload().(event.SelectionChanged)
	if !ok {
		return false
	}

	key := selectionKey{view: sel.View, doc: sel.Doc}
	if prev, ok := d.last.Get(key); ok && prev.Equal(sel.Selection) {
		return true
	}
	d.last.Add(key, sel.Selection)
	return false
}

// Reset implements Deduplicator.
func (d *SelectionDeduplicator) Reset() {
	d.last.Purge()
}

// Len returns the number of remembered keys.
func (d *SelectionDeduplicator) Len() int {
	return d.last.Len()
}
