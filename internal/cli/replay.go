package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/harness"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/store"
	"github.com/roach88/procstep/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Scenario      string `json:"scenario"`
	Seed          uint64 `json:"seed"`
	Recorded      int    `json:"recorded_events"`
	Replayed      int    `json:"replayed_events"`
	Deterministic bool   `json:"deterministic"`

	// FirstDifference is the seq of the first event that differs, or 0.
	FirstDifference int64 `json:"first_difference,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs and verify they reproduce the same trace.

Each run is re-executed from the scenario source stored with it, using the
recorded seed, history policy and process IDs. The new trace must match
the recorded one event for event and value for value.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  procstep replay --db ./runs.db
  procstep replay --db ./runs.db --run 0190a5c4-...
  procstep replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: db from the config file)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("[%s] no such run", ErrCodeRunNotFound), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions)

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, run, harness.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayRun re-executes one recorded run in a private in-memory store and
// compares the canonical traces.
func replayRun(ctx context.Context, st *store.Store, run store.Run, opts ...harness.Option) (ReplayRunResult, error) {
	recorded, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}
	procs, err := st.Processes(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}
	history, err := state.ParseHistory(run.History)
	if err != nil {
		return ReplayRunResult{}, err
	}
	s, err := harness.ParseScenario([]byte(run.Source), run.Format)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("recorded scenario: %w", err)
	}

	opts = append(opts, harness.WithSeed(run.Seed), harness.WithHistory(history))
	if len(procs) > 0 {
		opts = append(opts, harness.WithIDGenerator(engine.NewFixedGenerator(procs...)))
	}
	replayed, err := harness.Run(ctx, s, opts...)
	if err != nil {
		return ReplayRunResult{}, err
	}

	first, err := firstDifference(
		trace.Snapshot{Scenario: run.Scenario, Seed: run.Seed, Events: recorded},
		trace.Snapshot{Scenario: run.Scenario, Seed: run.Seed, Events: replayed.Trace},
	)
	if err != nil {
		return ReplayRunResult{}, err
	}

	return ReplayRunResult{
		RunID:           run.ID,
		Scenario:        run.Scenario,
		Seed:            run.Seed,
		Recorded:        len(recorded),
		Replayed:        len(replayed.Trace),
		Deterministic:   first < 0,
		FirstDifference: max(first, 0),
	}, nil
}

// firstDifference returns the seq of the first event whose canonical form
// differs between the snapshots, or -1 when they are identical. When one
// trace is a prefix of the other the first extra event counts.
func firstDifference(want, got trace.Snapshot) (int64, error) {
	a, err := want.Canonical()
	if err != nil {
		return 0, err
	}
	b, err := got.Canonical()
	if err != nil {
		return 0, err
	}
	if bytes.Equal(a, b) {
		return -1, nil
	}

	n := min(len(want.Events), len(got.Events))
	for i := range n {
		ea, err := trace.Snapshot{Events: want.Events[i : i+1]}.Canonical()
		if err != nil {
			return 0, err
		}
		eb, err := trace.Snapshot{Events: got.Events[i : i+1]}.Canonical()
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(ea, eb) {
			return want.Events[i].Seq, nil
		}
	}
	if len(want.Events) > n {
		return want.Events[n].Seq, nil
	}
	if len(got.Events) > n {
		return got.Events[n].Seq, nil
	}
	// Same events, different header.
	return 1, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Scenario)

		if verbose {
			fmt.Fprintf(w, "  Seed: %d\n", run.Seed)
			fmt.Fprintf(w, "  Recorded: %d events\n", run.Recorded)
			fmt.Fprintf(w, "  Replayed: %d events\n", run.Replayed)
		} else {
			fmt.Fprintf(w, "  Events: %d recorded, %d replayed\n", run.Recorded, run.Replayed)
		}

		if !run.Deterministic {
			fmt.Fprintf(w, "  Warning: traces diverge at seq %d\n", run.FirstDifference)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
