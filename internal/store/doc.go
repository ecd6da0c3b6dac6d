// Package store records procstep runs in SQLite.
//
// A run is one scenario execution. The store keeps:
//   - Runs: scenario name, unit, seed, history policy and the scenario source
//   - Events: every lifecycle event the host emitted, keyed by (run, seq)
//   - Event values: the output slots captured with initialize and compute events
//
// All ordering uses the host's logical seq, never timestamps, so a recorded
// run can be replayed and compared byte for byte. Output values are stored in
// their trace text form ("undefined" for NaN).
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
