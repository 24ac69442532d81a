package bridge

import (
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/hook"
)

// Convert builds the owned payload for a notification of kind.
// Borrowed slices are copied or reduced; n is not retained.
// An unknown kind yields nil.
func Convert(kind event.Kind, n *hook.Notification) event.Payload {
	switch kind {
	case event.KindDocumentChanged:
		return event.DocumentChanged{Doc: n.Doc, Change: event.ClassifyChange(n.Ops)}
	case event.KindSelectionChanged:
		return event.SelectionChanged{Doc: n.Doc, View: n.View, Selection: event.NewSelection(n.Ranges...)}
	case event.KindModeChanged:
		return event.ModeChanged{Old: n.OldMode, New: n.NewMode}
	case event.KindDiagnosticsChanged:
		return event.DiagnosticsChanged{Doc: n.Doc, Errors: n.Errors, Warnings: n.Warnings}
	case event.KindCompletionRequested:
		return event.CompletionRequested{Doc: n.Doc, View: n.View, Trigger: event.CompletionTrigger{Char: n.Char}}
	case event.KindDocumentOpened:
		return event.DocumentOpened{Doc: n.Doc}
	case event.KindDocumentClosed:
		return event.DocumentClosed{Doc: n.Doc, WasModified: n.Modified}
	case event.KindViewFocused:
		return event.ViewFocused{View: n.View}
	case event.KindLanguageServerInitialized:
		return event.LanguageServerInitialized{Server: n.Server}
	case event.KindLanguageServerExited:
		return event.LanguageServerExited{Server: n.Server}
	case event.KindPickerRequested:
		return event.PickerRequested{Picker: n.Picker, Workspace: n.Workspace}
	default:
		return nil
	}
}
