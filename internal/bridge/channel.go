package bridge

import (
	"sync"
	"time"

	"github.com/dshills/keybridge/internal/event"
)

// SendStatus is the result of one attempt to put an envelope in the channel.
type SendStatus uint8

const (
	SendOK SendStatus = iota
	SendFull
	SendClosed
)

// Sender is the channel view handed to a Strategy.
type Sender interface {
	// TrySend attempts a non-blocking send.
	TrySend(env event.Envelope) SendStatus

	// SendTimeout waits at most d for space.
	SendTimeout(env event.Envelope, d time.Duration) SendStatus
}

// channel is a bounded multi-producer, single-consumer queue that can be
// closed while producers are still calling into it.
type channel struct {
	mu     sync.RWMutex
	ch     chan event.Envelope
	closed bool
}

func newChannel(capacity int) *channel {
	return &channel{ch: make(chan event.Envelope, capacity)}
}

func (c *channel) TrySend(env event.Envelope) SendStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return SendClosed
	}
	select {
	case c.ch <- env:
		return SendOK
	default:
		return SendFull
	}
}

func (c *channel) SendTimeout(env event.Envelope, d time.Duration) SendStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return SendClosed
	}
	if d <= 0 {
		select {
		case c.ch <- env:
			return SendOK
		default:
			return SendFull
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case c.ch <- env:
		return SendOK
	case <-timer.C:
		return SendFull
	}
}

// close closes the channel once. Sends in flight finish first.
func (c *channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

func (c *channel) len() int {
	return len(c.ch)
}

// RecvStatus is the result of a receive attempt.
type RecvStatus uint8

const (
	// RecvOK means an envelope was returned.
	RecvOK RecvStatus = iota

	// RecvEmpty means nothing is buffered right now.
	RecvEmpty

	// RecvDisconnected means the bridge was closed and the buffer is drained.
	RecvDisconnected
)

// String returns the status name.
func (s RecvStatus) String() string {
	switch s {
	case RecvOK:
		return "ok"
	case RecvEmpty:
		return "empty"
	case RecvDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Receiver is the consumer end of a bridge. It is not safe for concurrent use;
// exactly one frame loop owns it.
type Receiver struct {
	ch <-chan event.Envelope
}

// TryRecv returns the next envelope without blocking.
func (r *Receiver) TryRecv() (event.Envelope, RecvStatus) {
	select {
	case env, ok := <-r.ch:
		if !ok {
			return event.Envelope{}, RecvDisconnected
		}
		return env, RecvOK
	default:
		return event.Envelope{}, RecvEmpty
	}
}

// Len returns the number of buffered envelopes.
func (r *Receiver) Len() int {
	return len(r.ch)
}
