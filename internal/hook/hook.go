package hook

import (
	"errors"

	"github.com/dshills/keybridge/internal/event"
)

// Errors returned by registries.
var (
	// ErrClosed is returned when registering with a registry that no longer accepts hooks.
	ErrClosed = errors.New("hook registry closed")

	// ErrUnknownKind is returned when registering for a kind the core does not emit.
	ErrUnknownKind = errors.New("unknown notification kind")

	// ErrInvalidHook is returned for a nil callback or an empty name.
	ErrInvalidHook = errors.New("invalid hook")
)

// Notification carries the call-scoped data of one core notification.
// Only the fields relevant to Kind are set.
//
// Ranges and Ops are borrowed from the core and are only valid until the
// callback returns.
type Notification struct {
	Kind event.Kind

	Doc    event.DocumentID
	View   event.ViewID
	Server event.ServerID

	// Ranges is the new selection (selection.changed).
	Ranges []event.Range

	// Ops is the applied change set (document.changed).
	Ops []event.OpKind

	// OldMode and NewMode describe a mode transition.
	OldMode event.Mode
	NewMode event.Mode

	// Errors and Warnings are diagnostic counts.
	Errors   int
	Warnings int

	// Modified reports unsaved changes when a document closes.
	Modified bool

	// Char is the completion trigger character, 0 for manual invocation.
	Char rune

	Picker    event.PickerKind
	Workspace bool
}

// Callback handles one notification. It runs on the core's call stack and
// must return quickly without blocking.
type Callback func(n *Notification)

// Registry registers callbacks with the editing core.
type Registry interface {
	// RegisterHook installs cb for kind under name.
	RegisterHook(kind event.Kind, name string, cb Callback) error
}

// Unregisterer is implemented by registries that can remove callbacks.
type Unregisterer interface {
	// UnregisterHook removes the named callback for kind.
	// It reports whether a callback was removed.
	UnregisterHook(kind event.Kind, name string) bool
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(kind event.Kind, name string, cb Callback) error

// RegisterHook implements Registry.
func (f RegistryFunc) RegisterHook(kind event.Kind, name string, cb Callback) error {
	return f(kind, name, cb)
}
