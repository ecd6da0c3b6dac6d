// Package trace turns engine lifecycle events into a stable, comparable
// record.
//
// Traces are serialized as RFC 8785 canonical JSON so that two runs with
// the same seed produce byte-identical output. Canonical JSON forbids
// floats; state values are carried as their shortest round-trip decimal
// text, with "undefined" standing for the NaN sentinel.
package trace
