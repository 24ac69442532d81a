package bridge

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dshills/keybridge/internal/event"
)

// ErrClosed is returned by RegisterHooks on a closed bridge.
var ErrClosed = errors.New("bridge closed")

// RegistrationError reports a hook the registry refused.
type RegistrationError struct {
	Kind event.Kind
	Hook string
	Err  error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering hook %s for %s: %v", e.Hook, e.Kind, e.Err)
}

// Unwrap returns the registry error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// RegistrationFailures extracts every *RegistrationError from err.
func RegistrationFailures(err error) []*RegistrationError {
	var out []*RegistrationError
	for _, e := range multierr.Errors(err) {
		var re *RegistrationError
		if errors.As(e, &re) {
			out = append(out, re)
		}
	}
	return out
}
