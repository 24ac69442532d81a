// Package bridge is the producer side of the event pipeline.
//
// A Bridge registers one callback per notification kind with the editing
// core, converts each call-scoped notification into an owned event.Envelope,
// and pushes it into a bounded channel that the frame loop drains.
//
//	  editing core                          frame loop
//	 ┌───────────┐   Notification   ┌────────┐   TryRecv   ┌───────────┐
//	 │ hook slot │ ───────────────► │ Bridge │ ──────────► │ scheduler │
//	 └───────────┘  (borrowed data) └────────┘  (bounded)  └───────────┘
//
// Callbacks run on the core's call stack, so Send never waits longer than the
// Block timeout. When the channel is full the configured Strategy decides:
//
//	Drop      one non-blocking attempt, drop on failure
//	Block(d)  one non-blocking attempt, then wait at most d for space
//	Adaptive  while the consumer is overloaded, shed Background sends without
//	          touching the channel; otherwise behave like Drop
//
// Dropped and shed envelopes are not errors. They are counted in Metrics and
// logged at debug level, sampled so a saturated channel cannot flood the log.
//
// RegisterHooks is idempotent per Bridge: the second and later calls return
// the first call's result without touching the registry. Close ends the
// stream; the receiver then reports RecvDisconnected once it has drained what
// was already buffered.
package bridge
