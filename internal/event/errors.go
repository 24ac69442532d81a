package event

import "errors"

// Sentinel errors for event values.
var (
	// ErrUnknownPriority is returned when a priority name cannot be parsed.
	ErrUnknownPriority = errors.New("unknown priority")
)
