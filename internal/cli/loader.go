package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/procstep/internal/harness"
	"github.com/roach88/procstep/internal/state"
	"github.com/roach88/procstep/internal/store"
)

// Error code constants, shared by every command.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No scenario files found
	ErrCodeLoadFailed   = "E004" // Scenario file could not be parsed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeInvalid      = "E006" // Scenario parsed but is invalid
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeStore        = "E008" // Database error
	ErrCodeRunNotFound  = "E009" // No such run in the database
	ErrCodeScenarioFail = "E010" // Scenario assertions failed
)

// LoadError represents an error that occurred while loading scenarios.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScenarioFile loads one scenario and classifies the failure.
func LoadScenarioFile(path string) (*harness.Scenario, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "scenario file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: fmt.Sprintf("error accessing scenario file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "is a directory"}
	}

	s, err := harness.LoadScenario(path)
	if err != nil {
		return nil, &LoadError{Code: loadErrorCode(err), Path: path, Message: err.Error()}
	}
	return s, nil
}

// loadErrorCode separates parse failures from validation failures.
func loadErrorCode(err error) string {
	if errors.Is(err, harness.ErrInvalidScenario) {
		return ErrCodeInvalid
	}
	return ErrCodeLoadFailed
}

// FindScenarioFiles lists the scenario files under dir.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scenarios directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	paths, err := harness.FindScenarios(dir, filter)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error()}
	}
	return paths, nil
}

// openStore opens the database named by the flag or, failing that, the
// config file.
func openStore(opts *RootOptions, flag string) (*store.Store, error) {
	path := flag
	if path == "" {
		path = opts.Config.Database
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set db in the config file")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// runOptions turns seed and history overrides into harness options. Flag
// values win over config values.
func runOptions(opts *RootOptions, seed *uint64, history string) ([]harness.Option, error) {
	var out []harness.Option

	switch {
	case seed != nil:
		out = append(out, harness.WithSeed(*seed))
	case opts.Config.Seed != nil:
		out = append(out, harness.WithSeed(*opts.Config.Seed))
	}

	switch {
	case history != "":
		h, err := state.ParseHistory(history)
		if err != nil {
			return nil, err
		}
		out = append(out, harness.WithHistory(h))
	case opts.Config.History != nil:
		out = append(out, harness.WithHistory(*opts.Config.History))
	}
	return out, nil
}
