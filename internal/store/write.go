package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/trace"
)

// Status is the outcome recorded for a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusRetired Status = "retired"
	StatusFailed  Status = "failed"
)

// Run is the header row of a recorded scenario execution.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Unit     string `json:"unit"`
	Seed     uint64 `json:"seed"`
	History  string `json:"history"`
	Scale    string `json:"scale"`

	// Format is the scenario source format, "yaml" or "cue". Source holds
	// the file as loaded so the run can be replayed without it.
	Format string `json:"format"`
	Source string `json:"-"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WriteRun inserts a run header with status running.
// Uses ON CONFLICT(id) DO NOTHING; writing the same ID twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, unit, seed, history, scale, format, source, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.Unit,
		int64(run.Seed), // go-sqlite3 rejects uint64 with the high bit set
		run.History,
		run.Scale,
		run.Format,
		run.Source,
		string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run. errMsg is stored verbatim.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ? WHERE id = ?
	`, string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteEvent inserts one event and its output values in a transaction.
// An event already recorded under (runID, seq) is left untouched.
//
// Note: the run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, runID string, ev trace.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write event: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, process, unit, kind, transition, disposable, error, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		ev.Seq,
		ev.Process,
		ev.Unit,
		ev.Kind,
		ev.Transition,
		ev.Disposable,
		ev.Error,
		ev.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	} else if n == 0 {
		return nil
	}

	if err := writeValues(ctx, tx, runID, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write event %d: commit: %w", ev.Seq, err)
	}
	return nil
}

func writeValues(ctx context.Context, tx *sql.Tx, runID string, ev trace.Event) error {
	if len(ev.Outputs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_values (run_id, seq, output, slot, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write values: prepare: %w", err)
	}
	defer stmt.Close()

	names := make([]string, 0, len(ev.Outputs))
	for name := range ev.Outputs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for slot, v := range ev.Outputs[name] {
			if _, err := stmt.ExecContext(ctx, runID, ev.Seq, name, slot, v); err != nil {
				return fmt.Errorf("write values %s[%d]: %w", name, slot, err)
			}
		}
	}
	return nil
}

// Recorder is an engine.Observer that writes every event to a run.
//
// Thread-safety: Recorder is safe for concurrent use; the store serializes
// writes over its single connection.
type Recorder struct {
	store *Store
	ctx   context.Context
	runID string

	mu    sync.Mutex
	count int
}

// Recorder returns an observer that appends events to runID. ctx bounds every
// write the recorder performs.
func (s *Store) Recorder(ctx context.Context, runID string) *Recorder {
	return &Recorder{store: s, ctx: ctx, runID: runID}
}

// Observe implements engine.Observer. A write failure aborts the process
// that emitted the event.
func (r *Recorder) Observe(ev engine.Event) error {
	if err := r.store.WriteEvent(r.ctx, r.runID, trace.FromEngine(ev)); err != nil {
		return err
	}
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	return nil
}

// Count returns how many events were written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
