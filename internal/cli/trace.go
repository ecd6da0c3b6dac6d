package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/store"
	"github.com/roach88/procstep/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - list runs when empty
	Output   string // optional - only show this output's values
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Unit     string `json:"unit"`
	Seed     uint64 `json:"seed"`
	Scale    string `json:"scale"`
	Status   string `json:"status"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	TotalEvents  int    `json:"total_events"`
	Computes     int    `json:"computes"`
	Values       int    `json:"values"`
	DisposableAt *int   `json:"disposable_at,omitempty"`
	FailedWith   string `json:"failed_with,omitempty"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	Run      store.Run     `json:"run"`
	Timeline []trace.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs",
		Long: `Show the runs recorded in a database.

Without --run, lists every run. With --run, prints the run's lifecycle
events in order with their output values, followed by summary statistics.

Examples:
  procstep trace --db ./runs.db
  procstep trace --db ./runs.db --run 0190a5c4-...
  procstep trace --db ./runs.db --run 0190a5c4-... --output runoff --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: db from the config file)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show")
	cmd.Flags().StringVar(&opts.Output, "output", "", "only show values of this output")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("[%s] no such run", ErrCodeRunNotFound), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Run:      run,
		Timeline: filterOutputs(events, opts.Output),
		Stats:    traceStats(events),
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, RunSummary{
			ID:       r.ID,
			Scenario: r.Scenario,
			Unit:     r.Unit,
			Seed:     r.Seed,
			Scale:    r.Scale,
			Status:   string(r.Status),
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, r := range summaries {
		fmt.Fprintf(w, "%s  %-8s %s (%s, seed %d) %s\n", truncateID(r.ID), r.Status, r.Scenario, r.Unit, r.Seed, r.Scale)
	}
	fmt.Fprintf(w, "\n%s run(s)\n", humanize.Comma(int64(len(summaries))))
	return nil
}

// filterOutputs keeps only the named output in each event. An empty name
// keeps everything.
func filterOutputs(events []trace.Event, output string) []trace.Event {
	if output == "" {
		return events
	}
	out := make([]trace.Event, len(events))
	for i, ev := range events {
		if vs, ok := ev.Outputs[output]; ok {
			ev.Outputs = map[string][]string{output: vs}
		} else {
			ev.Outputs = nil
		}
		out[i] = ev
	}
	return out
}

func traceStats(events []trace.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		for _, vs := range ev.Outputs {
			stats.Values += len(vs)
		}
		switch engine.EventKind(ev.Kind) {
		case engine.EventCompute:
			stats.Computes++
		case engine.EventFail:
			stats.FailedWith = ev.ErrorKind
		}
		if ev.Disposable && stats.DisposableAt == nil && ev.Transition != fault.NoTransition {
			t := ev.Transition
			stats.DisposableAt = &t
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (%s, seed %d, history %s)\n", run.Scenario, run.Unit, run.Seed, run.History)
	fmt.Fprintf(w, "Scale: %s\n", run.Scale)
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %s\n", humanize.Comma(int64(result.Stats.TotalEvents)))
	fmt.Fprintf(w, "  Computes:     %s\n", humanize.Comma(int64(result.Stats.Computes)))
	fmt.Fprintf(w, "  Values:       %s\n", humanize.Comma(int64(result.Stats.Values)))
	if result.Stats.DisposableAt != nil {
		fmt.Fprintf(w, "  Disposable:   after t=%d\n", *result.Stats.DisposableAt)
	}
	if result.Stats.FailedWith != "" {
		fmt.Fprintf(w, "  Failed With:  %s\n", result.Stats.FailedWith)
	}
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
