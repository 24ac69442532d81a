// Package hook describes how the editing core reports state changes.
//
// The core exposes one callback slot per notification kind. A callback runs
// synchronously on the core's own call stack, every time the change happens,
// and receives a Notification whose slices are borrowed: the core may reuse
// them as soon as the callback returns. Anything a callback wants to keep must
// be copied before it returns.
//
// # Registry
//
// Registry is the consumed interface. Implementations that can also remove
// callbacks implement Unregisterer.
//
//	registry.RegisterHook(event.KindModeChanged, "bridge.mode.changed", func(n *hook.Notification) {
//	    // n.OldMode, n.NewMode
//	})
//
// # Manager
//
// Manager is an in-process Registry. Registering a second callback under an
// existing name for the same kind replaces the first one, so a component that
// re-registers after a restart does not receive every notification twice.
// Fire delivers a notification to every callback of its kind in registration
// order on the caller's goroutine.
//
//	m := hook.NewManager()
//	_ = m.RegisterHook(event.KindDocumentChanged, "audit", auditDocument)
//	m.Fire(&hook.Notification{Kind: event.KindDocumentChanged, Doc: 7, Ops: ops})
//
// A closed Manager refuses new registrations with ErrClosed, which is how tests
// and the simulator model an editing core that has gone away.
package hook
