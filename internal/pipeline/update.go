package pipeline

import (
	"fmt"
	"strings"

	"github.com/dshills/keybridge/internal/event"
)

// Category is a semantic group of changes. Each flush emits at most one
// Update per category.
type Category uint8

const (
	CategoryDocuments Category = iota + 1
	CategorySelections
	CategoryMode
	CategoryDiagnostics
	CategoryCompletion
	CategoryOpened
	CategoryClosed
	CategoryFocus
	CategoryLanguageServers
	CategoryPicker
)

var categoryNames = map[Category]string{
	CategoryDocuments:       "documents",
	CategorySelections:      "selections",
	CategoryMode:            "mode",
	CategoryDiagnostics:     "diagnostics",
	CategoryCompletion:      "completion",
	CategoryOpened:          "opened",
	CategoryClosed:          "closed",
	CategoryFocus:           "focus",
	CategoryLanguageServers: "language-servers",
	CategoryPicker:          "picker",
}

// String returns the category name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// CategoryOf returns the category a payload kind batches into.
func CategoryOf(kind event.Kind) Category {
	switch kind {
	case event.KindDocumentChanged:
		return CategoryDocuments
	case event.KindSelectionChanged:
		return CategorySelections
	case event.KindModeChanged:
		return CategoryMode
	case event.KindDiagnosticsChanged:
		return CategoryDiagnostics
	case event.KindCompletionRequested:
		return CategoryCompletion
	case event.KindDocumentOpened:
		return CategoryOpened
	case event.KindDocumentClosed:
		return CategoryClosed
	case event.KindViewFocused:
		return CategoryFocus
	case event.KindLanguageServerInitialized, event.KindLanguageServerExited:
		return CategoryLanguageServers
	case event.KindPickerRequested:
		return CategoryPicker
	default:
		return 0
	}
}

// Update is one coalesced, UI-facing change record. The set of
// implementations is closed.
type Update interface {
	Category() Category
	String() string

	update()
}

// DocumentChange is one entry of DocumentsChanged.
type DocumentChange struct {
	Doc    event.DocumentID
	Change event.ChangeType
}

// DocumentsChanged lists every document edited since the last flush, each
// once, with the merged change type.
type DocumentsChanged struct {
	Documents []DocumentChange
}

// SelectionsChanged holds the latest selection per (view, document).
type SelectionsChanged struct {
	Selections []event.SelectionChanged
}

// ModeChanged is the last mode transition seen since the last flush.
type ModeChanged struct {
	Old event.Mode
	New event.Mode
}

// DocumentDiagnostics is one entry of DiagnosticsChanged.
type DocumentDiagnostics struct {
	Doc      event.DocumentID
	Errors   int
	Warnings int
}

// DiagnosticsChanged lists every document whose diagnostics changed, each
// once, with the latest counts.
type DiagnosticsChanged struct {
	Documents []DocumentDiagnostics
}

// CompletionRequested reports that completion was requested at least once.
// Request is the most recent request.
type CompletionRequested struct {
	Request event.CompletionRequested
}

// DocumentsOpened lists opened documents, each once.
type DocumentsOpened struct {
	Documents []event.DocumentID
}

// DocumentsClosed lists closed documents, each once.
// A document is reported modified if any of its close notifications was.
type DocumentsClosed struct {
	Documents []event.DocumentClosed
}

// ViewFocused is the most recently focused view.
type ViewFocused struct {
	View event.ViewID
}

// ServerState is the latest known state of one language server.
type ServerState struct {
	Server  event.ServerID
	Running bool
}

// LanguageServersChanged holds the latest state per language server.
type LanguageServersChanged struct {
	Servers []ServerState
}

// PickerRequested is the most recent picker request.
type PickerRequested struct {
	Request event.PickerRequested
}

func (DocumentsChanged) Category() Category       { return CategoryDocuments }
func (SelectionsChanged) Category() Category      { return CategorySelections }
func (ModeChanged) Category() Category            { return CategoryMode }
func (DiagnosticsChanged) Category() Category     { return CategoryDiagnostics }
func (CompletionRequested) Category() Category    { return CategoryCompletion }
func (DocumentsOpened) Category() Category        { return CategoryOpened }
func (DocumentsClosed) Category() Category        { return CategoryClosed }
func (ViewFocused) Category() Category            { return CategoryFocus }
func (LanguageServersChanged) Category() Category { return CategoryLanguageServers }
func (PickerRequested) Category() Category        { return CategoryPicker }

func (DocumentsChanged) update()       {}
func (SelectionsChanged) update()      {}
func (ModeChanged) update()            {}
func (DiagnosticsChanged) update()     {}
func (CompletionRequested) update()    {}
func (DocumentsOpened) update()        {}
func (DocumentsClosed) update()        {}
func (ViewFocused) update()            {}
func (LanguageServersChanged) update() {}
func (PickerRequested) update()        {}

func (u DocumentsChanged) String() string {
	parts := make([]string, len(u.Documents))
	for i, d := range u.Documents {
		parts[i] = fmt.Sprintf("%d:%s", d.Doc, d.Change)
	}
	return "documents changed {" + strings.Join(parts, " ") + "}"
}

func (u SelectionsChanged) String() string {
	parts := make([]string, len(u.Selections))
	for i, s := range u.Selections {
		parts[i] = fmt.Sprintf("doc=%d view=%d %s", s.Doc, s.View, s.Selection)
	}
	return "selections changed {" + strings.Join(parts, ", ") + "}"
}

func (u ModeChanged) String() string {
	return fmt.Sprintf("mode changed %s->%s", u.Old, u.New)
}

func (u DiagnosticsChanged) String() string {
	parts := make([]string, len(u.Documents))
	for i, d := range u.Documents {
		parts[i] = fmt.Sprintf("%d:%dE/%dW", d.Doc, d.Errors, d.Warnings)
	}
	return "diagnostics changed {" + strings.Join(parts, " ") + "}"
}

func (u CompletionRequested) String() string {
	return "completion requested (" + event.Describe(u.Request) + ")"
}

func (u DocumentsOpened) String() string {
	return fmt.Sprintf("documents opened %v", u.Documents)
}

func (u DocumentsClosed) String() string {
	parts := make([]string, len(u.Documents))
	for i, d := range u.Documents {
		parts[i] = fmt.Sprintf("%d modified=%t", d.Doc, d.WasModified)
	}
	return "documents closed {" + strings.Join(parts, ", ") + "}"
}

func (u ViewFocused) String() string {
	return fmt.Sprintf("view focused %d", u.View)
}

func (u LanguageServersChanged) String() string {
	parts := make([]string, len(u.Servers))
	for i, s := range u.Servers {
		state := "exited"
		if s.Running {
			state = "running"
		}
		parts[i] = fmt.Sprintf("%d:%s", s.Server, state)
	}
	return "language servers {" + strings.Join(parts, " ") + "}"
}

func (u PickerRequested) String() string {
	return fmt.Sprintf("picker requested %s workspace=%t", u.Request.Picker, u.Request.Workspace)
}
