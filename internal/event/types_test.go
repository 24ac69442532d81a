package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_String(t *testing.T) {
	tests := []struct {
		priority Priority
		expected string
	}{
		{PriorityBackground, "background"},
		{PrioritySystem, "system"},
		{PriorityUserInput, "user-input"},
		{Priority(9), "priority(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.priority.String())
		})
	}
}

func TestPriority_Ordering(t *testing.T) {
	assert.Greater(t, PriorityUserInput, PrioritySystem)
	assert.Greater(t, PrioritySystem, PriorityBackground)
	assert.Equal(t, [...]Priority{PriorityUserInput, PrioritySystem, PriorityBackground}, Priorities)
}

func TestParsePriority(t *testing.T) {
	for _, p := range Priorities {
		got, err := ParsePriority(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrUnknownPriority)
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 11)
	assert.Equal(t, KindDocumentChanged, kinds[0])
	assert.Equal(t, KindPickerRequested, kinds[len(kinds)-1])

	seen := make(map[string]bool)
	for _, k := range kinds {
		name := k.String()
		assert.False(t, seen[name], "duplicate kind name %s", name)
		seen[name] = true
	}
	assert.Equal(t, "kind(0)", Kind(0).String())
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name string
		ops  []OpKind
		want ChangeType
	}{
		{"empty", nil, ChangeBulk},
		{"single insert", []OpKind{OpInsert}, ChangeInsert},
		{"retain insert", []OpKind{OpRetain, OpInsert}, ChangeInsert},
		{"retain insert retain", []OpKind{OpRetain, OpInsert, OpRetain}, ChangeBulk},
		{"single delete", []OpKind{OpDelete}, ChangeDelete},
		{"retain delete", []OpKind{OpRetain, OpDelete}, ChangeDelete},
		{"insert and delete", []OpKind{OpRetain, OpDelete, OpInsert, OpRetain}, ChangeReplace},
		{"retain only", []OpKind{OpRetain}, ChangeBulk},
		{"many inserts", []OpKind{OpInsert, OpRetain, OpInsert}, ChangeBulk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChange(tt.ops))
		})
	}
}

func TestChangeType_Merge(t *testing.T) {
	assert.Equal(t, ChangeInsert, ChangeInsert.Merge(ChangeInsert))
	assert.Equal(t, ChangeBulk, ChangeInsert.Merge(ChangeDelete))
	assert.Equal(t, ChangeBulk, ChangeReplace.Merge(ChangeBulk))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "normal", ModeNormal.String())
	assert.Equal(t, "insert", ModeInsert.String())
	assert.Equal(t, "mode(42)", Mode(42).String())
}

func TestDefaultPriority(t *testing.T) {
	tests := map[Kind]Priority{
		KindDocumentChanged:           PriorityUserInput,
		KindSelectionChanged:          PriorityUserInput,
		KindModeChanged:               PriorityUserInput,
		KindCompletionRequested:       PriorityUserInput,
		KindPickerRequested:           PriorityUserInput,
		KindDocumentOpened:            PrioritySystem,
		KindDocumentClosed:            PrioritySystem,
		KindViewFocused:               PrioritySystem,
		KindLanguageServerInitialized: PrioritySystem,
		KindLanguageServerExited:      PrioritySystem,
		KindDiagnosticsChanged:        PriorityBackground,
	}
	require.Len(t, tests, len(Kinds()))
	for kind, want := range tests {
		assert.Equal(t, want, DefaultPriority(kind), kind.String())
	}
}
