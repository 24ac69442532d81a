// Package event defines the data carried from the editing core to the UI runtime.
//
// Every state change the core reports through a hook becomes exactly one
// Envelope: a priority, a payload and the instant it was created. Envelopes are
// immutable and hold only owned, plain data (document and view identifiers,
// selection ranges, mode pairs, diagnostic counts). They never reference memory
// owned by the core, because an envelope routinely outlives the hook call that
// produced it.
//
// # Architecture
//
//	  editing core hook ──► Envelope ──► bounded channel ──► pipeline ──► Update
//	  (producer stack)       (this)        (bridge)          (consumer)    (ui)
//
// # Priorities
//
// Priorities order delivery when the pipeline runs a priority queue:
//
//	UserInput  - keystrokes, cursor movement, mode switches the user is watching
//	System     - document and language-server state
//	Background - diagnostics and other tolerant, high-volume notifications
//
// Within one priority, envelopes keep send order. Across priorities the queue
// reorders in favour of the higher class, so callers must not assume FIFO
// delivery between classes.
//
// # Payloads
//
// Payload is a closed set. Each variant reports its Kind, which is also the key
// the bridge uses when registering hooks with the core:
//
//	DocumentChanged            SelectionChanged       ModeChanged
//	DiagnosticsChanged         CompletionRequested    DocumentOpened
//	DocumentClosed             ViewFocused            LanguageServerInitialized
//	LanguageServerExited       PickerRequested
package event
