package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackpressure indicates an unparsable backpressure strategy.
	ErrUnknownBackpressure = errors.New("unknown backpressure strategy")
)

// FieldError describes one invalid configuration field.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

// ConfigError reports every field that failed validation.
// It is fatal: a subsystem is never built from an invalid configuration.
type ConfigError struct {
	// Err holds the combined field errors.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

// Unwrap returns the combined field errors.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ConfigError with ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the individual field errors.
func (e *ConfigError) Fields() []*FieldError {
	var out []*FieldError
	for _, err := range multierr.Errors(e.Err) {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// HasField reports whether validation failed for the named field.
func (e *ConfigError) HasField(field string) bool {
	for _, fe := range e.Fields() {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
