// Package unit implements the computing units a host drives through the
// initialize/compute lifecycle.
//
// # Lifecycle
//
//	Created → Initialized → Stepping* → Disposable
//
// Initialize validates the declared variables once, creates the output
// states in the host-supplied store and seeds them over the initialization
// slice. A scale whose temporal extent has at most one step leaves the unit
// disposable immediately; the host then never calls Compute.
//
// Compute is called once per transition in strictly increasing order, after
// the host has advanced the store to that transition. It reads values from
// the previous transition, writes the current one and reports disposable
// on the last transition.
//
// Sequencing violations (compute before initialize, after a failed
// initialize, after disposable, or out of order) fail with STALE_READ.
// Declared variables of a non-numeric kind fail initialize with
// TYPE_MISMATCH. Parameters that cannot be coerced fail Configure with
// CONFIGURATION.
package unit
