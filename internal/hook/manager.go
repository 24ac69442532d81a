package hook

import (
	"fmt"
	"sync"

	"github.com/dshills/keybridge/internal/event"
)

type entry struct {
	name string
	cb   Callback
}

// Manager is an in-process Registry keyed by notification kind.
type Manager struct {
	mu     sync.RWMutex
	hooks  map[event.Kind][]entry
	closed bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		hooks: make(map[event.Kind][]entry),
	}
}

// RegisterHook implements Registry.
// A callback already registered under name for kind is replaced.
func (m *Manager) RegisterHook(kind event.Kind, name string, cb Callback) error {
	if name == "" || cb == nil {
		return fmt.Errorf("%w: name=%q", ErrInvalidHook, name)
	}
	if kind < event.KindDocumentChanged || kind > event.KindPickerRequested {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	hooks := m.hooks[kind]
	for i, existing := range hooks {
		if existing.name == name {
			hooks[i].cb = cb
			return nil
		}
	}
	m.hooks[kind] = append(hooks, entry{name: name, cb: cb})
	return nil
}

// UnregisterHook implements Unregisterer.
func (m *Manager) UnregisterHook(kind event.Kind, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	hooks := m.hooks[kind]
	for i, h := range hooks {
		if h.name == name {
			m.hooks[kind] = append(hooks[:i], hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Fire delivers n to every callback registered for n.Kind and returns how
// many ran. Callbacks run on the caller's goroutine in registration order.
func (m *Manager) Fire(n *Notification) int {
	m.mu.RLock()
	hooks := make([]entry, len(m.hooks[n.Kind]))
	copy(hooks, m.hooks[n.Kind])
	m.mu.RUnlock()

	for _, h := range hooks {
		h.cb(n)
	}
	return len(hooks)
}

// Count returns the number of callbacks registered for kind.
func (m *Manager) Count(kind event.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks[kind])
}

// Names returns the callback names registered for kind, in order.
func (m *Manager) Names(kind event.Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.hooks[kind]))
	for i, h := range m.hooks[kind] {
		names[i] = h.name
	}
	return names
}

// Close refuses further registrations. Registered callbacks keep firing
// until they are unregistered or Clear is called.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Reopen accepts registrations again after Close.
func (m *Manager) Reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
}

// Clear removes all callbacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.hooks)
}
