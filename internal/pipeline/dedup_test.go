package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keybridge/internal/event"
)

func selectionEnv(doc event.DocumentID, view event.ViewID, ranges ...event.Range) event.Envelope {
	return env(event.SelectionChanged{Doc: doc, View: view, Selection: event.NewSelection(ranges...)})
}

func TestSelectionDeduplicator(t *testing.T) {
	d, err := NewSelectionDeduplicator(8)
	require.NoError(t, err)

	r := event.Range{Anchor: 3, Head: 3}
	assert.False(t, d.Duplicate(selectionEnv(1, 1, r)))
	assert.True(t, d.Duplicate(selectionEnv(1, 1, r)))
	assert.True(t, d.Duplicate(selectionEnv(1, 1, r)))

	// Same selection for another key is not a duplicate.
	assert.False(t, d.Duplicate(selectionEnv(1, 2, r)))
	assert.False(t, d.Duplicate(selectionEnv(2, 1, r)))

	// Moving and moving back are both changes.
	moved := event.Range{Anchor: 4, Head: 4}
	assert.False(t, d.Duplicate(selectionEnv(1, 1, moved)))
	assert.False(t, d.Duplicate(selectionEnv(1, 1, r)))

	// Other kinds pass through.
	assert.False(t, d.Duplicate(env(event.DocumentOpened{Doc: 1})))
	assert.False(t, d.Duplicate(env(event.DocumentOpened{Doc: 1})))
	assert.Equal(t, 3, d.Len())

	d.Reset()
	assert.Zero(t, d.Len())
	assert.False(t, d.Duplicate(selectionEnv(1, 1, r)))
}

func TestSelectionDeduplicatorEviction(t *testing.T) {
	d, err := NewSelectionDeduplicator(2)
	require.NoError(t, err)

	r := event.Range{Anchor: 1, Head: 1}
	assert.False(t, d.Duplicate(selectionEnv(1, 1, r)))
	assert.False(t, d.Duplicate(selectionEnv(2, 1, r)))
	assert.False(t, d.Duplicate(selectionEnv(3, 1, r)))

	// Key (1,1) was evicted, so its repeat is let through once.
	assert.False(t, d.Duplicate(selectionEnv(1, 1, r)))
	assert.Equal(t, 2, d.Len())
}

func TestSelectionDeduplicatorInvalidCapacity(t *testing.T) {
	_, err := NewSelectionDeduplicator(0)
	assert.Error(t, err)
}
