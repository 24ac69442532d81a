package event

import (
	"fmt"
	"strings"
)

// Priority classifies how urgently the UI must see an envelope.
// Higher values are delivered first by the priority queue.
type Priority uint8

const (
	// PriorityBackground is for notifications the UI can show late.
	PriorityBackground Priority = iota

	// PrioritySystem is for document and server state changes.
	PrioritySystem

	// PriorityUserInput is for changes caused directly by the user.
	PriorityUserInput
)

// Priorities lists every priority from highest to lowest.
var Priorities = [...]Priority{PriorityUserInput, PrioritySystem, PriorityBackground}

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PrioritySystem:
		return "system"
	case PriorityUserInput:
		return "user-input"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p <= PriorityUserInput
}

// ParsePriority parses a priority name as produced by String.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background":
		return PriorityBackground, nil
	case "system":
		return PrioritySystem, nil
	case "user-input", "userinput", "user_input":
		return PriorityUserInput, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// Kind identifies a payload variant and the core notification it comes from.
type Kind uint8

const (
	KindDocumentChanged Kind = iota + 1
	KindSelectionChanged
	KindModeChanged
	KindDiagnosticsChanged
	KindCompletionRequested
	KindDocumentOpened
	KindDocumentClosed
	KindViewFocused
	KindLanguageServerInitialized
	KindLanguageServerExited
	KindPickerRequested
)

var kindNames = map[Kind]string{
	KindDocumentChanged:           "document.changed",
	KindSelectionChanged:          "selection.changed",
	KindModeChanged:               "mode.changed",
	KindDiagnosticsChanged:        "diagnostics.changed",
	KindCompletionRequested:       "completion.requested",
	KindDocumentOpened:            "document.opened",
	KindDocumentClosed:            "document.closed",
	KindViewFocused:               "view.focused",
	KindLanguageServerInitialized: "lsp.initialized",
	KindLanguageServerExited:      "lsp.exited",
	KindPickerRequested:           "picker.requested",
}

// Kinds returns every payload kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := KindDocumentChanged; k <= KindPickerRequested; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// String returns the dotted notification name (e.g. "selection.changed").
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// DefaultPriority returns the priority the bridge assigns to notifications of kind k.
//
// Changes the user is watching happen at UserInput, lifecycle and server
// state at System, and diagnostics at Background.
func DefaultPriority(k Kind) Priority {
	switch k {
	case KindDocumentChanged, KindSelectionChanged, KindModeChanged,
		KindCompletionRequested, KindPickerRequested:
		return PriorityUserInput
	case KindDiagnosticsChanged:
		return PriorityBackground
	default:
		return PrioritySystem
	}
}

// DocumentID identifies a document inside the editing core.
type DocumentID uint64

// ViewID identifies a view (split/window) inside the editing core.
type ViewID uint64

// ServerID identifies a language server instance.
type ServerID uint64

// Mode is an editing mode such as normal or insert.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeInsert
	ModeSelect
	ModeCommand
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeInsert:
		return "insert"
	case ModeSelect:
		return "select"
	case ModeCommand:
		return "command"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ChangeType summarizes what a document change did.
type ChangeType uint8

const (
	// ChangeBulk is a complex or unclassifiable change.
	ChangeBulk ChangeType = iota
	ChangeInsert
	ChangeDelete
	ChangeReplace
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeReplace:
		return "replace"
	default:
		return "bulk"
	}
}

// Merge combines two change summaries for the same document.
// Identical summaries are kept; anything else collapses to ChangeBulk.
func (c ChangeType) Merge(other ChangeType) ChangeType {
	if c == other {
		return c
	}
	return ChangeBulk
}

// OpKind is the kind of a single change-set operation.
type OpKind uint8

const (
	OpRetain OpKind = iota
	OpInsert
	OpDelete
)

// ClassifyChange reduces a change set to a ChangeType.
//
// Retains only position the change and do not count as edits. A set with both
// inserts and deletes is a replace. Pure inserts or pure deletes with at most
// two operations keep their type; larger or empty sets are bulk changes.
func ClassifyChange(ops []OpKind) ChangeType {
	if len(ops) == 0 {
		return ChangeBulk
	}

	var hasInsert, hasDelete bool
	for _, op := range ops {
		switch op {
		case OpInsert:
			hasInsert = true
		case OpDelete:
			hasDelete = true
		}
	}

	many := len(ops) > 2
	switch {
	case hasInsert && hasDelete:
		return ChangeReplace
	case hasInsert && !many:
		return ChangeInsert
	case hasDelete && !many:
		return ChangeDelete
	default:
		return ChangeBulk
	}
}

// PickerKind identifies which picker the core asked the UI to open.
type PickerKind uint8

const (
	PickerDiagnostics PickerKind = iota
	PickerFile
	PickerBuffer
)

// String returns the picker name.
func (p PickerKind) String() string {
	switch p {
	case PickerDiagnostics:
		return "diagnostics"
	case PickerFile:
		return "file"
	case PickerBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("picker(%d)", uint8(p))
	}
}
