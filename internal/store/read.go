package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/procstep/internal/trace"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, scenario, unit, seed, history, scale, format, source, status, error`

// ReadRun returns the run header for id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by ID. UUIDv7 IDs sort by creation.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the events of a run ordered by seq, with their output
// values reassembled per slot.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	events, index, err := s.readEventRows(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := s.readValues(ctx, runID, events, index); err != nil {
		return nil, err
	}
	return events, nil
}

// readEventRows closes its rows before returning; the store has a single
// connection and readValues needs it.
func (s *Store) readEventRows(ctx context.Context, runID string) ([]trace.Event, map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, process, unit, kind, transition, disposable, error, error_kind
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	index := make(map[int64]int)
	for rows.Next() {
		var ev trace.Event
		if err := rows.Scan(
			&ev.Seq,
			&ev.Process,
			&ev.Unit,
			&ev.Kind,
			&ev.Transition,
			&ev.Disposable,
			&ev.Error,
			&ev.ErrorKind,
		); err != nil {
			return nil, nil, fmt.Errorf("scan event: %w", err)
		}
		index[ev.Seq] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, index, nil
}

func (s *Store) readValues(ctx context.Context, runID string, events []trace.Event, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, output, slot, value
		FROM event_values
		WHERE run_id = ?
		ORDER BY seq ASC, output COLLATE BINARY ASC, slot ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq    int64
			output string
			slot   int
			value  string
		)
		if err := rows.Scan(&seq, &output, &slot, &value); err != nil {
			return fmt.Errorf("scan value: %w", err)
		}
		i, ok := index[seq]
		if !ok {
			return fmt.Errorf("value for unknown event %d", seq)
		}
		ev := &events[i]
		if ev.Outputs == nil {
			ev.Outputs = make(map[string][]string)
		}
		if slot != len(ev.Outputs[output]) {
			return fmt.Errorf("event %d output %s: slot %d out of sequence", seq, output, slot)
		}
		ev.Outputs[output] = append(ev.Outputs[output], value)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate values: %w", err)
	}
	return nil
}

// Processes returns the process IDs of a run in the order they first
// appeared. Replay hands them to a FixedGenerator so a re-run reproduces the
// recorded IDs.
func (s *Store) Processes(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT process
		FROM events
		WHERE run_id = ?
		GROUP BY process
		ORDER BY MIN(seq) ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run    Run
		seed   int64
		status string
	)
	if err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Unit,
		&seed,
		&run.History,
		&run.Scale,
		&run.Format,
		&run.Source,
		&status,
		&run.Error,
	); err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	run.Status = Status(status)
	return run, nil
}
