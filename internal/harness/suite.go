package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ScenarioPattern matches scenario files below a suite directory.
const ScenarioPattern = "**/*.{yaml,yml}"

// SuiteResult is the outcome of one scenario file.
type SuiteResult struct {
	Path     string  `json:"path"`
	Scenario string  `json:"scenario,omitempty"`
	Result   *Result `json:"result,omitempty"`

	// Err is set when the file could not be loaded or executed.
	Err error `json:"-"`
}

// Passed reports whether the scenario ran and every check held.
func (r SuiteResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Pass
}

// Discover lists scenario files under dir in lexical order. A non-empty
// filter is a doublestar pattern matched against the path relative to dir.
func Discover(dir, filter string) ([]string, error) {
	if filter != "" && !doublestar.ValidatePattern(filter) {
		return nil, fmt.Errorf("invalid filter pattern %q", filter)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), ScenarioPattern)
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
	}

	var paths []string
	for _, rel := range matches {
		if filter != "" {
			ok, err := doublestar.Match(filter, rel)
			if err != nil {
				return nil, fmt.Errorf("match filter: %w", err)
			}
			if !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(rel)))
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every discovered scenario. A scenario that fails
// to load does not stop the others.
func RunSuite(dir, filter string, opts ...Option) ([]SuiteResult, error) {
	paths, err := Discover(dir, filter)
	if err != nil {
		return nil, err
	}

	results := make([]SuiteResult, 0, len(paths))
	for _, path := range paths {
		sr := SuiteResult{Path: path}
		scenario, err := LoadScenario(path)
		if err != nil {
			sr.Err = err
			results = append(results, sr)
			continue
		}
		sr.Scenario = scenario.Name
		sr.Result, sr.Err = Run(scenario, opts...)
		results = append(results, sr)
	}
	return results, nil
}
