package harness

import (
	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// RunID identifies the recorded run; Seed is the seed it ran with.
	RunID string `json:"run_id"`
	Seed  uint64 `json:"seed"`

	// Pass is true when the run met every assertion.
	Pass bool `json:"pass"`

	// Trace contains every lifecycle event in seq order.
	// Used for assertions and golden comparison.
	Trace []trace.Event `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is the engine result; nil when the process failed.
	Run *engine.Result `json:"-"`

	// Err is the process failure, if any. Whether it fails the scenario
	// depends on its error_kind assertion.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []trace.Event{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot returns the trace snapshot used for golden comparison.
func (r *Result) Snapshot() trace.Snapshot {
	return trace.Snapshot{Scenario: r.Scenario, Seed: r.Seed, Events: r.Trace}
}
