// Package fault defines the error kinds raised by the stepping kernel.
//
// Every kind aborts the lifecycle call that raised it and is surfaced to the
// host unmodified. Hosts may wrap a *Error with %w; Is and the Is* helpers
// look through wrapping via errors.As.
//
// Missing numeric values are NOT errors. They are represented by the
// undefined sentinel in package state and propagate through arithmetic.
package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes kernel errors.
type Kind string

const (
	// KindTypeMismatch indicates a declared input or output is not of the
	// accepted numeric kind. Raised by Initialize.
	KindTypeMismatch Kind = "TYPE_MISMATCH"

	// KindConfiguration indicates a parameter could not be coerced to its
	// expected type. Raised when parameters are applied.
	KindConfiguration Kind = "CONFIGURATION"

	// KindStaleRead indicates a read at a transition for which nothing was
	// ever recorded, or a call made out of lifecycle order.
	KindStaleRead Kind = "STALE_READ"

	// KindOutOfRange indicates Previous was requested on the initial
	// transition, or a coordinate fell outside its extent.
	KindOutOfRange Kind = "OUT_OF_RANGE"
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{KindTypeMismatch, KindConfiguration, KindStaleRead, KindOutOfRange}

// NoTransition marks an Error that is not tied to a transition.
const NoTransition = -1

// NoOffset marks an Error that is not tied to an offset.
const NoOffset = -1

// Error is a kernel error with structured context for diagnostics.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Variable names the offending input, output or parameter, if any.
	Variable string

	// Transition is the transition index involved, or NoTransition.
	Transition int

	// Offset is the domain offset involved, or NoOffset.
	Offset int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Variable != "" {
		msg += fmt.Sprintf(" (variable=%s)", e.Variable)
	}
	if e.Transition != NoTransition {
		msg += fmt.Sprintf(" (transition=%d)", e.Transition)
	}
	if e.Offset != NoOffset {
		msg += fmt.Sprintf(" (offset=%d)", e.Offset)
	}
	return msg
}

// Is reports whether err is a kernel error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a kernel error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsTypeMismatch returns true if err is a TYPE_MISMATCH error.
func IsTypeMismatch(err error) bool { return Is(err, KindTypeMismatch) }

// IsConfiguration returns true if err is a CONFIGURATION error.
func IsConfiguration(err error) bool { return Is(err, KindConfiguration) }

// IsStaleRead returns true if err is a STALE_READ error.
func IsStaleRead(err error) bool { return Is(err, KindStaleRead) }

// IsOutOfRange returns true if err is an OUT_OF_RANGE error.
func IsOutOfRange(err error) bool { return Is(err, KindOutOfRange) }

// TypeMismatch creates an error for a variable of the wrong kind.
// Role is "input" or "output".
func TypeMismatch(role, variable, kind string) *Error {
	return &Error{
		Kind:       KindTypeMismatch,
		Message:    fmt.Sprintf("%s state %s is not numeric (kind %s)", role, variable, kind),
		Variable:   variable,
		Transition: NoTransition,
		Offset:     NoOffset,
	}
}

// Configuration creates an error for a parameter that cannot be coerced.
func Configuration(param string, value any, want string) *Error {
	return &Error{
		Kind:       KindConfiguration,
		Message:    fmt.Sprintf("parameter value %v (%T) cannot be used as %s", value, value, want),
		Variable:   param,
		Transition: NoTransition,
		Offset:     NoOffset,
	}
}

// StaleRead creates an error for a read or call outside the recorded history.
func StaleRead(variable string, transition, offset int, reason string) *Error {
	return &Error{
		Kind:       KindStaleRead,
		Message:    reason,
		Variable:   variable,
		Transition: transition,
		Offset:     offset,
	}
}

// OutOfRange creates an error for an index outside its valid range.
func OutOfRange(what string, index, size int) *Error {
	return &Error{
		Kind:       KindOutOfRange,
		Message:    fmt.Sprintf("%s index %d outside [0, %d)", what, index, size),
		Transition: NoTransition,
		Offset:     NoOffset,
	}
}
