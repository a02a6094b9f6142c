package harness

import (
	"fmt"
	"path/filepath"
	"sort"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int                 `json:"total"`
	Passed   int                 `json:"passed"`
	Failures map[string][]string `json:"failures,omitempty"`
}

// OK reports whether every scenario passed.
func (r SuiteResult) OK() bool { return r.Total == r.Passed }

// RunDir loads every *.yaml scenario in dir, in name order, and runs it.
// A scenario that cannot be loaded or run is reported as an error.
func RunDir(dir string) (SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return SuiteResult{}, err
	}
	sort.Strings(paths)

	res := SuiteResult{Failures: make(map[string][]string)}
	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		result, err := Run(scenario)
		if err != nil {
			return res, fmt.Errorf("%s: %w", scenario.Name, err)
		}
		res.Total++
		if result.Pass {
			res.Passed++
			continue
		}
		res.Failures[scenario.Name] = result.Errors
	}
	return res, nil
}
