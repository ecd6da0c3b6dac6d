package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// FindScenarios returns the scenario files under dir, sorted. When filter is
// non-empty only files whose base name matches the glob are returned.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// golden files and other fixtures live under testdata
			if path != dir && (d.Name() == "golden" || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".cue":
		default:
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, d.Name()); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Results  []*Result      `json:"results"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure records one scenario that failed to load, run or pass.
type SuiteFailure struct {
	Path     string `json:"path"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error"`
}

// RunSuite loads every scenario in paths and runs them with RunAll.
//
// For each path:
// 1. Load the scenario; a load error is a failure
// 2. Run the loaded scenarios concurrently
// 3. Collect pass/fail per scenario
//
// The returned error covers storage failures only.
func RunSuite(ctx context.Context, paths []string, parallelism int, opts ...Option) (*SuiteResult, error) {
	suite := &SuiteResult{Results: []*Result{}}

	var (
		scenarios []*Scenario
		origins   []string
	)
	for _, path := range paths {
		suite.Total++
		s, err := LoadScenario(path)
		if err != nil {
			suite.Failed++
			suite.Failures = append(suite.Failures, SuiteFailure{
				Path:  path,
				Error: fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}
		scenarios = append(scenarios, s)
		origins = append(origins, path)
	}

	results, err := RunAll(ctx, scenarios, parallelism, opts...)
	if err != nil {
		return nil, err
	}

	for i, res := range results {
		suite.Results = append(suite.Results, res)
		if res.Pass {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, SuiteFailure{
			Path:     origins[i],
			Scenario: res.Scenario,
			Error:    fmt.Sprintf("scenario assertions failed: %s", strings.Join(res.Errors, "; ")),
		})
	}
	return suite, nil
}
