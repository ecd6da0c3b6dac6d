package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update      bool   // regenerate golden files
	Filter      string // scenario filter (glob pattern)
	GoldenDir   string // default: <scenarios-dir>/golden
	Parallelism int
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run a directory of scenarios",
		Long: `Run every scenario under a directory and check its assertions.

Scenarios whose name has a golden file (<golden-dir>/<name>.golden) must
also reproduce that canonical trace byte for byte. Scenarios run
concurrently; each gets its own in-memory store, process ID and clock.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  procstep test ./scenarios
  procstep test ./scenarios --filter "sum_*"
  procstep test ./scenarios --update
  procstep test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenario files by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")
	cmd.Flags().IntVarP(&opts.Parallelism, "parallel", "p", 0, "scenarios to run at once (0: config value or unbounded)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	paths, err := FindScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}
	parallelism := opts.Parallelism
	if parallelism == 0 {
		parallelism = opts.Config.Parallelism
	}

	runOpts, err := runOptions(opts.RootOptions, nil, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	runOpts = append(runOpts, harness.WithLogger(newLogger(cmd.ErrOrStderr(), opts.RootOptions)))

	suite, err := harness.RunSuite(cmd.Context(), paths, parallelism, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, suite.Total),
		Total:     suite.Total,
	}
	w := cmd.OutOrStdout()

	for _, res := range suite.Results {
		sr := ScenarioResult{Name: res.Scenario, Pass: res.Pass, Errors: res.Errors}
		if goldenErr := checkGolden(goldenDir, res, opts.Update); goldenErr != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, goldenErr.Error())
		}
		result.add(sr)

		if opts.Format != "json" {
			printScenario(cmd, sr, opts.Update)
		}
	}
	for _, f := range suite.Failures {
		// assertion failures were reported with their result above
		if f.Scenario != "" {
			continue
		}
		sr := ScenarioResult{Name: filepath.Base(f.Path), Path: f.Path, Errors: []string{f.Error}}
		result.add(sr)
		if opts.Format != "json" {
			printScenario(cmd, sr, false)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(w, result)
}

func (r *TestResult) add(sr ScenarioResult) {
	r.Scenarios = append(r.Scenarios, sr)
	if sr.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

func printScenario(cmd *cobra.Command, sr ScenarioResult, updated bool) {
	w := cmd.OutOrStdout()
	if sr.Pass {
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
			return
		}
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(dir, scenario string) string {
	return filepath.Join(dir, scenario+".golden")
}

// checkGolden compares a result's canonical trace with its golden file, or
// rewrites the file when update is set. A scenario with no golden file is
// checked by its assertions only.
func checkGolden(dir string, res *harness.Result, update bool) error {
	current, err := res.Snapshot().Canonical()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := goldenFilePath(dir, res.Scenario)

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenarioFail,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %s passed, %s failed, %s total\n",
		humanize.Comma(int64(result.Passed)),
		humanize.Comma(int64(result.Failed)),
		humanize.Comma(int64(result.Total)))

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
