package pipeline

import "github.com/dshills/keybridge/internal/event"

// fifo is a slice-backed queue that reuses its storage once drained.
type fifo struct {
	items []event.Envelope
	head  int
}

func (q *fifo) push(env event.Envelope) {
	q.items = append(q.items, env)
}

func (q *fifo) pop() (event.Envelope, bool) {
	if q.head == len(q.items) {
		return event.Envelope{}, false
	}
	env := q.items[q.head]
	q.items[q.head] = event.Envelope{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return env, true
}

func (q *fifo) len() int {
	return len(q.items) - q.head
}

// PriorityQueue holds one FIFO per priority.
//
// Pop drains UserInput completely before System, and System before
// Background. Within a priority, envelopes leave in the order they arrived;
// across priorities, arrival order is deliberately not preserved.
type PriorityQueue struct {
	queues [event.PriorityUserInput + 1]fifo
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Push enqueues env. Unknown priorities are treated as Background.
func (q *PriorityQueue) Push(env event.Envelope) {
	p := env.Priority()
	if !p.Valid() {
		p = event.PriorityBackground
	}
	q.queues[p].push(env)
}

// Pop removes the oldest envelope of the highest non-empty priority.
func (q *PriorityQueue) Pop() (event.Envelope, bool) {
	for _, p := range event.Priorities {
		if env, ok := q.queues[p].pop(); ok {
			return env, true
		}
	}
	return event.Envelope{}, false
}

// Len returns the total number of queued envelopes.
func (q *PriorityQueue) Len() int {
	n := 0
	for i := range q.queues {
		n += q.queues[i].len()
	}
	return n
}

// LenOf returns the number of queued envelopes of priority p.
func (q *PriorityQueue) LenOf(p event.Priority) int {
	if !p.Valid() {
		return 0
	}
	return q.queues[p].len()
}
