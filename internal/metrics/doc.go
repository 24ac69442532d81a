// Package metrics holds the bridge and pipeline counters.
//
// Counters are lock-free atomics. The producer (hook callbacks on the editing
// core's stack) and the consumer (the frame loop) update them concurrently;
// everyone else reads them through Snapshot or the individual accessors.
//
// Counters only grow. The running average event age is derived from a sum and
// a count and covers the whole session; nothing in the pipeline resets it.
// Reset exists for explicit operator action only.
//
// When metrics are disabled the event counters keep counting, but age and
// frame-cost accounting is skipped and AverageEventAge reports zero.
//
// Export publishes the same values as OpenTelemetry observable instruments.
package metrics
