package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/procstep/internal/fault"
)

// Phase names the lifecycle call a process was in when it failed.
type Phase string

const (
	PhaseCreate     Phase = "create"
	PhaseConfigure  Phase = "configure"
	PhaseInitialize Phase = "initialize"
	PhaseAdvance    Phase = "advance"
	PhaseCompute    Phase = "compute"
)

// ProcessError reports a process aborted by a failed lifecycle call.
//
// The cause is kept intact: fault kinds raised by the unit or the state
// store are reachable with errors.As and the fault.Is* helpers.
type ProcessError struct {
	// Process is the pool key of the failed process.
	Process string

	// Unit is the prototype ID the process was created from.
	Unit string

	// Phase is the failing call.
	Phase Phase

	// Transition is the transition index involved, or fault.NoTransition.
	Transition int

	// Err is the cause.
	Err error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.Transition != fault.NoTransition {
		return fmt.Sprintf("process %s (%s) %s at t=%d: %v", e.Process, e.Unit, e.Phase, e.Transition, e.Err)
	}
	return fmt.Sprintf("process %s (%s) %s: %v", e.Process, e.Unit, e.Phase, e.Err)
}

// Unwrap returns the cause.
func (e *ProcessError) Unwrap() error { return e.Err }

// AsProcessError returns the ProcessError in err's chain, if any.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
