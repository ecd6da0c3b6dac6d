package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/engine"
	"github.com/roach88/procstep/internal/fault"
	"github.com/roach88/procstep/internal/harness"
	"github.com/roach88/procstep/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Seed     uint64
	History  string
	RunID    string

	// IDGenerator overrides the process ID generator (for testing).
	// If nil, UUIDv7Generator is used when recording to a database.
	IDGenerator engine.IDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Unit     string        `json:"unit"`
	Seed     uint64        `json:"seed"`
	Scale    string        `json:"scale"`
	Pass     bool          `json:"pass"`
	Errors   []string      `json:"errors,omitempty"`
	FailedIn string        `json:"failed_in,omitempty"`
	Events   []trace.Event `json:"events"`
	Database string        `json:"database,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Execute a scenario",
		Long: `Execute one scenario and print its lifecycle events.

The unit is configured, initialized and stepped through every transition
of the scenario's scale. With --db the run is recorded so it can be
inspected with trace and re-executed with replay.

Exit codes:
  0 - The run met every assertion
  1 - The run failed or an assertion failed
  2 - Command error (missing file, database error, etc.)

Examples:
  procstep run ./scenarios/no_inputs.yaml
  procstep run ./scenarios/no_inputs.yaml --db ./runs.db --seed 7
  procstep run ./scenarios/sum_state.cue --history full --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override the scenario seed")
	cmd.Flags().StringVar(&opts.History, "history", "", "override the history policy (double|full)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run ID to record under (default: a new UUIDv7)")

	return cmd
}

// logEvents streams lifecycle events to the debug log as they happen.
func logEvents(logger *slog.Logger) engine.Observer {
	return engine.ObserverFunc(func(ev engine.Event) error {
		logger.Debug("event",
			"seq", ev.Seq,
			"kind", ev.Kind,
			"transition", ev.Transition,
			"disposable", ev.Disposable,
		)
		return nil
	})
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions)

	s, err := LoadScenarioFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var seed *uint64
	if cmd.Flags().Changed("seed") {
		seed = &opts.Seed
	}
	runOpts, err := runOptions(opts.RootOptions, seed, opts.History)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	runOpts = append(runOpts, harness.WithLogger(logger), harness.WithObserver(logEvents(logger)))

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Database
	}
	if dbPath != "" {
		st, err := openStore(opts.RootOptions, dbPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		ids := opts.IDGenerator
		if ids == nil {
			ids = engine.UUIDv7Generator{}
		}
		runOpts = append(runOpts, harness.WithStore(st), harness.WithIDGenerator(ids), harness.WithRunID(opts.RunID))
	}

	// Use the command's context if available (for testing)
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping at the next transition", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Debug("running scenario", "scenario", s.Name, "unit", s.Unit, "db", dbPath)
	result, err := harness.Run(ctx, s, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	sc, err := s.Scale.Build()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scale", err)
	}

	out := RunResult{
		RunID:    result.RunID,
		Scenario: result.Scenario,
		Unit:     s.Unit,
		Seed:     result.Seed,
		Scale:    sc.String(),
		Pass:     result.Pass,
		Errors:   result.Errors,
		Events:   result.Trace,
		Database: dbPath,
	}
	if pe, ok := engine.AsProcessError(result.Err); ok {
		out.FailedIn = string(pe.Phase)
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out, RunID: out.RunID}
		if !out.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeScenarioFail, Message: "scenario failed"}
		}
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s: scenario %s, unit %s, seed %d\n", out.RunID, out.Scenario, out.Unit, out.Seed)
		fmt.Fprintf(w, "Scale: %s (%s slots per step)\n", out.Scale, humanize.Comma(int64(sc.Slots())))
		fmt.Fprintln(w)
		for _, ev := range out.Events {
			formatEvent(w, ev, opts.Verbose)
		}
		fmt.Fprintln(w)
		if out.Pass {
			fmt.Fprintf(w, "✓ %s passed (%s events)\n", out.Scenario, humanize.Comma(int64(len(out.Events))))
		} else {
			fmt.Fprintf(w, "✗ %s failed", out.Scenario)
			if out.FailedIn != "" {
				fmt.Fprintf(w, " during %s", out.FailedIn)
			}
			fmt.Fprintln(w)
			for _, e := range out.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

// maxValues bounds how many values per output a non-verbose event line shows.
const maxValues = 8

// formatEvent writes one lifecycle event, with its output values indented
// below it.
func formatEvent(w io.Writer, ev trace.Event, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s", ev.Seq, ev.Kind)
	if ev.Transition != fault.NoTransition {
		fmt.Fprintf(w, " t=%d", ev.Transition)
	}
	if ev.Disposable {
		fmt.Fprint(w, " disposable")
	}
	if verbose {
		fmt.Fprintf(w, " process=%s", ev.Process)
	}
	fmt.Fprintln(w)

	if ev.ErrorKind != "" || ev.Error != "" {
		fmt.Fprintf(w, "       %s: %s\n", ev.ErrorKind, ev.Error)
	}

	names := make([]string, 0, len(ev.Outputs))
	for name := range ev.Outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "       %s: %s\n", name, formatValues(ev.Outputs[name], verbose))
	}
}

func formatValues(values []string, verbose bool) string {
	if verbose || len(values) <= maxValues {
		return "[" + strings.Join(values, " ") + "]"
	}
	return fmt.Sprintf("[%s ... (%s values)]", strings.Join(values[:maxValues], " "), humanize.Comma(int64(len(values))))
}
