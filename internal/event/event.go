package event

import (
	"strconv"
	"time"
)

// Envelope is the immutable unit carried from the producer to the consumer.
// Construct envelopes with NewEnvelope; the zero value carries no payload.
type Envelope struct {
	priority  Priority
	payload   Payload
	timestamp time.Time
	seq       uint64
}

// NewEnvelope creates an envelope stamped with ts.
func NewEnvelope(payload Payload, priority Priority, ts time.Time) Envelope {
	return Envelope{
		priority:  priority,
		payload:   payload,
		timestamp: ts,
	}
}

// WithSeq returns a copy of the envelope carrying a producer sequence number.
// The bridge stamps every envelope it accepts so replay and dumps can show send order.
func (e Envelope) WithSeq(seq uint64) Envelope {
	e.seq = seq
	return e
}

// Priority returns the envelope priority.
func (e Envelope) Priority() Priority {
	return e.priority
}

// Payload returns the carried notification.
func (e Envelope) Payload() Payload {
	return e.payload
}

// Kind returns the payload kind, or 0 for an empty envelope.
func (e Envelope) Kind() Kind {
	if e.payload == nil {
		return 0
	}
	return e.payload.Kind()
}

// Timestamp returns when the envelope was created.
func (e Envelope) Timestamp() time.Time {
	return e.timestamp
}

// Seq returns the producer sequence number (0 if never stamped).
func (e Envelope) Seq() uint64 {
	return e.seq
}

// Age returns how long ago the envelope was created relative to now.
// Envelopes stamped in the future report zero age.
func (e Envelope) Age(now time.Time) time.Duration {
	age := now.Sub(e.timestamp)
	if age < 0 {
		return 0
	}
	return age
}

// IsZero reports whether the envelope carries no payload.
func (e Envelope) IsZero() bool {
	return e.payload == nil
}

// String formats the envelope for logs.
func (e Envelope) String() string {
	return "#" + strconv.FormatUint(e.seq, 10) + " " + e.priority.String() + " " + Describe(e.payload)
}
