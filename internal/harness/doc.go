// Package harness runs procstep scenarios end to end and checks them.
//
// A scenario names a unit, its parameters, a scale, inputs and outputs, and
// a list of assertions. The harness builds the engine job, drives the unit
// through its lifecycle, records every event in a SQLite store (a private
// in-memory one unless WithStore is given) and evaluates the assertions
// against the recorded trace.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files with the following structure:
//
//	name: with_input
//	description: "input fixed to 10, no perturbation"
//	unit: example.p
//	seed: 42
//	params: { multiplier: 0 }
//	scale:
//	  time: { steps: 3, start: "2024-01-01T00:00:00Z", step: 24h }
//	  grid: { cols: 2, rows: 1 }
//	inputs:
//	  - { name: rain, value: 10 }
//	outputs:
//	  - { name: runoff }
//	assertions:
//	  - { type: disposable_at, transition: 2 }
//	  - { type: value_at, output: runoff, offset: 0, value: 10 }
//
// Unknown fields are rejected in both formats.
//
// # Assertion Types
//
//   - disposable_at: the unit first reported disposable after a transition
//   - non_negative: every recorded value of an output is >= 0 or undefined
//   - init_range: every initialized value of an output lies in [min, max]
//   - undefined_at: an output is undefined at an offset
//   - value_at: an output equals a value at an offset
//   - compute_count: Compute ran exactly count times
//   - error_kind: the run failed with the given error kind
//
// A run that fails without an error_kind assertion fails the scenario.
//
// # Deterministic Testing
//
// By default every run uses a fixed process ID, a fresh logical clock and the
// scenario seed, so the same scenario produces a byte-identical canonical
// trace. RunWithGolden compares that trace against testdata/golden.
package harness
