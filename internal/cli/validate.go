package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/harness"
	"github.com/roach88/procstep/internal/unit"
)

// ValidationError is one invalid scenario file.
type ValidationError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidatedScenario summarizes a valid scenario file.
type ValidatedScenario struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Scale      string `json:"scale"`
	Assertions int    `json:"assertions"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Scenarios []ValidatedScenario `json:"scenarios,omitempty"`
	Errors    []ValidationError   `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files without running them.

Parses each file, rejects unknown fields, checks the scale, the declared
variables and the assertions, and checks that the unit is registered.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)

		s, err := validateScenarioFile(path)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, toValidationError(path, err))
			continue
		}
		sc, _ := s.Scale.Build()
		result.Scenarios = append(result.Scenarios, ValidatedScenario{
			Path:       path,
			Name:       s.Name,
			Unit:       s.Unit,
			Scale:      sc.String(),
			Assertions: len(s.Assertions),
		})
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		for _, v := range result.Scenarios {
			fmt.Fprintf(formatter.Writer, "✓ %s: %s on %s, %d assertion(s)\n", v.Name, v.Unit, v.Scale, v.Assertions)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "✗ %s\n  %s: %s\n", e.Path, e.Code, e.Message)
		}
	}

	if !result.Valid {
		return validationExit(result.Errors)
	}
	return nil
}

// validateScenarioFile loads a scenario and checks that its unit exists.
func validateScenarioFile(path string) (*harness.Scenario, error) {
	s, err := LoadScenarioFile(path)
	if err != nil {
		return nil, err
	}
	if _, ok := unit.Lookup(s.Unit); !ok {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: fmt.Sprintf("unknown unit %q", s.Unit)}
	}
	return s, nil
}

func toValidationError(path string, err error) ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return ValidationError{Path: path, Code: loadErr.Code, Message: loadErr.Message}
	}
	return ValidationError{Path: path, Code: ErrCodeGeneric, Message: err.Error()}
}

// validationExit maps errors to an exit code: a missing file is a command
// error (2), an invalid one is a validation failure (1).
func validationExit(errs []ValidationError) error {
	for _, e := range errs {
		if e.Code == ErrCodeNotFound {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", e.Code, e.Message))
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
