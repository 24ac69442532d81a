package pipeline

import (
	"github.com/dshills/keybridge/internal/event"
)

// Batcher accumulates accepted envelopes and coalesces them on Flush.
type Batcher interface {
	// Add accumulates one envelope.
	Add(env event.Envelope)

	// Flush returns one Update per non-empty category and clears all state.
	Flush() []Update

	// Len returns the number of envelopes added since the last flush.
	Len() int
}

// keyed is an insertion-ordered map used for set-like categories.
type keyed[K comparable, V any] struct {
	index map[K]int
	items []V
}

func newKeyed[K comparable, V any]() keyed[K, V] {
	return keyed[K, V]{index: make(map[K]int)}
}

// put stores v under k. An existing entry keeps its position and is
// replaced by merge(old, v).
func (k *keyed[K, V]) put(key K, v V, merge func(old, v V) V) {
	if i, ok := k.index[key]; ok {
		k.items[i] = merge(k.items[i], v)
		return
	}
	k.index[key] = len(k.items)
	k.items = append(k.items, v)
}

// take returns the accumulated items and resets k.
func (k *keyed[K, V]) take() []V {
	items := k.items
	k.items = nil
	clear(k.index)
	return items
}

func replace[V any](_, v V) V { return v }

type selectionKey struct {
	view event.ViewID
	doc  event.DocumentID
}

// CoalescingBatcher keeps per-category state and flushes categories in the
// order they were first touched since the previous flush.
//
// Documents, diagnostics, opened and closed documents and language servers
// are sets keyed by identifier. Selections keep the last value per
// (view, document). Mode, focus, completion and picker keep the last value.
type CoalescingBatcher struct {
	order   []Category
	touched [CategoryPicker + 1]bool
	added   int

	documents   keyed[event.DocumentID, DocumentChange]
	selections  keyed[selectionKey, event.SelectionChanged]
	diagnostics keyed[event.DocumentID, DocumentDiagnostics]
	opened      keyed[event.DocumentID, event.DocumentID]
	closed      keyed[event.DocumentID, event.DocumentClosed]
	servers     keyed[event.ServerID, ServerState]

	mode       ModeChanged
	completion event.CompletionRequested
	focus      event.ViewID
	picker     event.PickerRequested
}

// NewCoalescingBatcher creates an empty batcher.
func NewCoalescingBatcher() *CoalescingBatcher {
	return &CoalescingBatcher{
		documents:   newKeyed[event.DocumentID, DocumentChange](),
		selections:  newKeyed[selectionKey, event.SelectionChanged](),
		diagnostics: newKeyed[event.DocumentID, DocumentDiagnostics](),
		opened:      newKeyed[event.DocumentID, event.DocumentID](),
		closed:      newKeyed[event.DocumentID, event.DocumentClosed](),
		servers:     newKeyed[event.ServerID, ServerState](),
	}
}

func (b *CoalescingBatcher) touch(c Category) {
	if !b.touched[c] {
		b.touched[c] = true
		b.order = append(b.order, c)
	}
}

// Add implements Batcher. Envelopes without a payload are ignored.
func (b *CoalescingBatcher) Add(env event.Envelope) {
	switch p := env.Payload().(type) {
	case event.DocumentChanged:
		b.documents.put(p.Doc, DocumentChange{Doc: p.Doc, Change: p.Change}, func(old, v DocumentChange) DocumentChange {
			old.Change = old.Change.Merge(v.Change)
			return old
		})
	case event.SelectionChanged:
		b.selections.put(selectionKey{view: p.View, doc: p.Doc}, p, replace)
	case event.ModeChanged:
		b.mode = ModeChanged{Old: p.Old, New: p.New}
	case event.DiagnosticsChanged:
		b.diagnostics.put(p.Doc, DocumentDiagnostics{Doc: p.Doc, Errors: p.Errors, Warnings: p.Warnings}, replace)
	case event.CompletionRequested:
		b.completion = p
	case event.DocumentOpened:
		b.opened.put(p.Doc, p.Doc, replace)
	case event.DocumentClosed:
		b.closed.put(p.Doc, p, func(old, v event.DocumentClosed) event.DocumentClosed {
			v.WasModified = v.WasModified || old.WasModified
			return v
		})
	case event.ViewFocused:
		b.focus = p.View
	case event.LanguageServerInitialized:
		b.servers.put(p.Server, ServerState{Server: p.Server, Running: true}, replace)
	case event.LanguageServerExited:
		b.servers.put(p.Server, ServerState{Server: p.Server, Running: false}, replace)
	case event.PickerRequested:
		b.picker = p
	default:
		return
	}
	b.touch(CategoryOf(env.Kind()))
	b.added++
}

// Len implements Batcher.
func (b *CoalescingBatcher) Len() int {
	return b.added
}

// Flush implements Batcher.
func (b *CoalescingBatcher) Flush() []Update {
	if len(b.order) == 0 {
		return nil
	}

	updates := make([]Update, 0, len(b.order))
	for _, c := range b.order {
		switch c {
		case CategoryDocuments:
			updates = append(updates, DocumentsChanged{Documents: b.documents.take()})
		case CategorySelections:
			updates = append(updates, SelectionsChanged{Selections: b.selections.take()})
		case CategoryMode:
			updates = append(updates, b.mode)
		case CategoryDiagnostics:
			updates = append(updates, DiagnosticsChanged{Documents: b.diagnostics.take()})
		case CategoryCompletion:
			updates = append(updates, CompletionRequested{Request: b.completion})
		case CategoryOpened:
			updates = append(updates, DocumentsOpened{Documents: b.opened.take()})
		case CategoryClosed:
			updates = append(updates, DocumentsClosed{Documents: b.closed.take()})
		case CategoryFocus:
			updates = append(updates, ViewFocused{View: b.focus})
		case CategoryLanguageServers:
			updates = append(updates, LanguageServersChanged{Servers: b.servers.take()})
		case CategoryPicker:
			updates = append(updates, PickerRequested{Request: b.picker})
		}
	}

	b.order = b.order[:0]
	b.touched = [CategoryPicker + 1]bool{}
	b.added = 0
	b.mode = ModeChanged{}
	b.completion = event.CompletionRequested{}
	b.focus = 0
	b.picker = event.PickerRequested{}
	return updates
}
