package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SuiteResult summarizes a batch of scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
	Results  []*Result         `json:"-"`
}

// ScenarioFailure represents a failed or unrunnable scenario.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Name         string   `json:"name,omitempty"`
	Errors       []string `json:"errors"`
}

// FindScenarios expands paths into scenario files. Directories are walked
// for *.yaml and *.yml files; files are taken as is. The result is sorted
// so suites run in a stable order.
func FindScenarios(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("scenario path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario file. A scenario that cannot be
// loaded or executed counts as failed; the suite always runs to the end.
func RunSuite(files []string) *SuiteResult {
	suite := &SuiteResult{
		Failures: []ScenarioFailure{},
		Results:  []*Result{},
	}

	for _, path := range files {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(path, "", []string{err.Error()})
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			suite.fail(path, scenario.Name, []string{err.Error()})
			continue
		}
		suite.Results = append(suite.Results, result)

		if !result.Pass {
			suite.fail(path, scenario.Name, result.Errors)
			continue
		}
		suite.Passed++
	}

	return suite
}

func (s *SuiteResult) fail(path, name string, errs []string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{
		ScenarioPath: path,
		Name:         name,
		Errors:       errs,
	})
}
