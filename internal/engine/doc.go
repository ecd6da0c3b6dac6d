// Package engine is the reference host that drives units through their
// lifecycle.
//
// The host owns an object pool keyed by process ID. For every Job it
// creates a fresh unit from the registry, configures it, initializes it over
// the job's scale and then, for each transition after the initialization
// slice, advances the process's state store and calls Compute. Disposable is
// polled after every lifecycle call; once it reports true the process is
// retired and removed from the pool.
//
// ORDERING:
//
// Every lifecycle call is stamped with a sequence number from a logical
// Clock and reported to the Observer, if any. Within one process the stamps
// are strictly increasing. RunAll executes independent processes
// concurrently, so stamps from different processes interleave.
//
// ERRORS:
//
// A failed call aborts the process. The error is returned wrapped in a
// ProcessError carrying the process ID and the phase; kernel faults remain
// reachable through errors.As.
package engine
