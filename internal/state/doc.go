// Package state holds the keyed numeric arrays a process reads and writes.
//
// A State is a dense array with one float64 per offset of a Scale. Values
// that were never set read as Undefined (NaN) so that "no value yet" is
// distinguishable from zero. Arithmetic on Undefined yields Undefined, which
// lets missing inputs produce missing outputs without raising errors.
//
// # History
//
// Storage is kept per slot (an offset with its temporal coordinate removed)
// and versioned by transition. Set always records at the store's active
// transition; GetAt reads the value as it stood at an earlier transition.
//
//   - DoubleBuffer (default) keeps the active and the previous transition.
//     Advance copies current into previous before moving on.
//   - FullHistory keeps one layer per transition since creation.
//
// Reading a transition older than what is retained, or older than the state
// itself, fails with a STALE_READ error.
//
// # Ownership
//
// A Store owns the output states of one process and is advanced by the host
// between compute calls. Inputs are handed to units as Readers and must be
// treated as read-only; Constant and FromSlots build frozen inputs that may
// be shared between concurrently running processes.
package state
