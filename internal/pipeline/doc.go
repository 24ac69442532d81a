// Package pipeline is the consumer side of the event bridge.
//
// Every envelope drained from the channel goes through the same stages:
//
//	Filter ──► Deduplicator ──► PriorityQueue (optional) ──► Batcher ──► []Update
//
// Filters run in order and the first rejection wins. The standard filter is
// StalenessFilter; ScriptFilter lets a Lua script decide. The standard
// deduplicator collapses cursor storms by dropping SelectionChanged envelopes
// identical to the last one kept for the same view and document.
//
// The priority queue reorders across priority classes: DrainQueue always
// empties UserInput before System before Background. Within one class the
// send order is kept.
//
// The batcher coalesces per category. Flush emits one Update per category
// touched since the previous flush, in the order the categories were first
// touched, and clears its state. Set-like updates such as DocumentsChanged
// never contain the same identifier twice, and at most one ModeChanged is
// emitted per flush (the last transition wins).
//
// A Pipeline is owned by the frame loop and is not safe for concurrent use.
package pipeline
