package event

import "fmt"

// Payload is the closed set of notifications an envelope can carry.
// Only types in this package implement it.
type Payload interface {
	// Kind reports which notification the payload represents.
	Kind() Kind

	payload()
}

// Range is one selection range in character offsets.
type Range struct {
	Anchor int
	Head   int
}

// Selection is an owned copy of a view's selection ranges.
// The zero value is an empty selection.
type Selection struct {
	ranges []Range
}

// NewSelection copies ranges into a new Selection.
// The caller may reuse or mutate ranges afterwards.
func NewSelection(ranges ...Range) Selection {
	if len(ranges) == 0 {
		return Selection{}
	}
	owned := make([]Range, len(ranges))
	copy(owned, ranges)
	return Selection{ranges: owned}
}

// Len returns the number of ranges.
func (s Selection) Len() int {
	return len(s.ranges)
}

// At returns the i-th range.
func (s Selection) At(i int) Range {
	return s.ranges[i]
}

// Primary returns the first range, or the zero Range for an empty selection.
func (s Selection) Primary() Range {
	if len(s.ranges) == 0 {
		return Range{}
	}
	return s.ranges[0]
}

// Equal reports whether both selections hold the same ranges in the same order.
func (s Selection) Equal(other Selection) bool {
	if len(s.ranges) != len(other.ranges) {
		return false
	}
	for i := range s.ranges {
		if s.ranges[i] != other.ranges[i] {
			return false
		}
	}
	return true
}

// String formats the selection as "[a..h b..h]".
func (s Selection) String() string {
	out := "["
	for i, r := range s.ranges {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d..%d", r.Anchor, r.Head)
	}
	return out + "]"
}

// DocumentChanged reports an edit to a document's text.
type DocumentChanged struct {
	Doc    DocumentID
	Change ChangeType
}

// SelectionChanged reports a new selection for a document in a view.
type SelectionChanged struct {
	Doc       DocumentID
	View      ViewID
	Selection Selection
}

// ModeChanged reports an editing mode transition.
type ModeChanged struct {
	Old Mode
	New Mode
}

// DiagnosticsChanged reports new diagnostic counts for a document.
type DiagnosticsChanged struct {
	Doc      DocumentID
	Errors   int
	Warnings int
}

// CompletionTrigger describes why completion was requested.
type CompletionTrigger struct {
	// Char is the inserted character, or 0 when completion was invoked manually.
	Char rune
}

// Manual reports whether completion was invoked without a trigger character.
func (t CompletionTrigger) Manual() bool {
	return t.Char == 0
}

// CompletionRequested asks the UI to show completions.
type CompletionRequested struct {
	Doc     DocumentID
	View    ViewID
	Trigger CompletionTrigger
}

// DocumentOpened reports a newly opened document.
type DocumentOpened struct {
	Doc DocumentID
}

// DocumentClosed reports a closed document.
type DocumentClosed struct {
	Doc         DocumentID
	WasModified bool
}

// ViewFocused reports a focus change between views.
type ViewFocused struct {
	View ViewID
}

// LanguageServerInitialized reports that a language server finished initializing.
type LanguageServerInitialized struct {
	Server ServerID
}

// LanguageServerExited reports that a language server exited.
type LanguageServerExited struct {
	Server ServerID
}

// PickerRequested asks the UI to open a picker.
type PickerRequested struct {
	Picker PickerKind

	// Workspace is set for workspace-wide diagnostics pickers.
	Workspace bool
}

func (DocumentChanged) Kind() Kind           { return KindDocumentChanged }
func (SelectionChanged) Kind() Kind          { return KindSelectionChanged }
func (ModeChanged) Kind() Kind               { return KindModeChanged }
func (DiagnosticsChanged) Kind() Kind        { return KindDiagnosticsChanged }
func (CompletionRequested) Kind() Kind       { return KindCompletionRequested }
func (DocumentOpened) Kind() Kind            { return KindDocumentOpened }
func (DocumentClosed) Kind() Kind            { return KindDocumentClosed }
func (ViewFocused) Kind() Kind               { return KindViewFocused }
func (LanguageServerInitialized) Kind() Kind { return KindLanguageServerInitialized }
func (LanguageServerExited) Kind() Kind      { return KindLanguageServerExited }
func (PickerRequested) Kind() Kind           { return KindPickerRequested }

func (DocumentChanged) payload()           {}
func (SelectionChanged) payload()          {}
func (ModeChanged) payload()               {}
func (DiagnosticsChanged) payload()        {}
func (CompletionRequested) payload()       {}
func (DocumentOpened) payload()            {}
func (DocumentClosed) payload()            {}
func (ViewFocused) payload()               {}
func (LanguageServerInitialized) payload() {}
func (LanguageServerExited) payload()      {}
func (PickerRequested) payload()           {}

// Describe returns a short human-readable rendering of a payload for logs and dumps.
func Describe(p Payload) string {
	switch v := p.(type) {
	case DocumentChanged:
		return fmt.Sprintf("%s doc=%d change=%s", v.Kind(), v.Doc, v.Change)
	case SelectionChanged:
		return fmt.Sprintf("%s doc=%d view=%d sel=%s", v.Kind(), v.Doc, v.View, v.Selection)
	case ModeChanged:
		return fmt.Sprintf("%s %s->%s", v.Kind(), v.Old, v.New)
	case DiagnosticsChanged:
		return fmt.Sprintf("%s doc=%d errors=%d warnings=%d", v.Kind(), v.Doc, v.Errors, v.Warnings)
	case CompletionRequested:
		if v.Trigger.Manual() {
			return fmt.Sprintf("%s doc=%d view=%d manual", v.Kind(), v.Doc, v.View)
		}
		return fmt.Sprintf("%s doc=%d view=%d char=%q", v.Kind(), v.Doc, v.View, v.Trigger.Char)
	case DocumentOpened:
		return fmt.Sprintf("%s doc=%d", v.Kind(), v.Doc)
	case DocumentClosed:
		return fmt.Sprintf("%s doc=%d modified=%t", v.Kind(), v.Doc, v.WasModified)
	case ViewFocused:
		return fmt.Sprintf("%s view=%d", v.Kind(), v.View)
	case LanguageServerInitialized:
		return fmt.Sprintf("%s server=%d", v.Kind(), v.Server)
	case LanguageServerExited:
		return fmt.Sprintf("%s server=%d", v.Kind(), v.Server)
	case PickerRequested:
		return fmt.Sprintf("%s picker=%s workspace=%t", v.Kind(), v.Picker, v.Workspace)
	case nil:
		return "<nil>"
	default:
		return p.Kind().String()
	}
}
