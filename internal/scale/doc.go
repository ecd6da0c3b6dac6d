// Package scale describes the discretized domain a process is computed over.
//
// A Scale is an ordered, immutable list of extents (space, time, or any other
// dimension), each with a finite size. Every point of the domain has a linear
// offset in [0, Cardinality()). Offsets are laid out row-major: the first
// extent varies slowest.
//
// # Addressing
//
// The offset/coordinate bijection is fixed when the Scale is built: strides
// are computed once in New and reused by every lookup, so addressing is never
// recomputed inconsistently mid-run.
//
// # Locators
//
// A Locator fixes zero or more extents to a coordinate. Offsets(loc) yields
// the offsets of every combination of the remaining free extents:
//
//	space, _ := sc.Space()
//	for off := range sc.Offsets(tr) {   // tr fixes time, space is free
//	    cell, _ := sc.ExtentOffset(space, off)
//	    ...
//	}
//
// Offsets is a pure function of (Scale, Locator): the returned sequence is
// finite, holds no hidden state and can be ranged over any number of times.
//
// Initialization is the pre-simulation locator. It selects the first time
// slice (or everything, when the scale has no time) and is what a nil Locator
// means. All() selects every offset.
//
// # Transitions
//
// A Transition is a cursor over the temporal extent and is itself a Locator
// fixing time. Scales whose temporal multiplicity is <= 1 are treated as
// having no time: they expose a single transition and
// IsTemporallyDistributed reports false.
package scale
