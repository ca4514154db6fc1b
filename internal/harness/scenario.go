package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/tpp"
)

// Scenario defines a pass test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the path to the CUE file defining the function.
	// Relative paths are resolved against the scenario file location.
	Spec string `yaml:"spec"`

	// Function selects function.<Function> from the spec.
	Function string `yaml:"function"`

	// Config overrides the pass configuration. Absent fields keep
	// tpp.DefaultConfig values.
	Config tpp.Config `yaml:"config,omitempty"`

	// GeneralizeFeasible makes the generalized pad predicate accept every
	// pad. Only meaningful with config.enable_generalized_pad.
	GeneralizeFeasible bool `yaml:"generalize_feasible,omitempty"`

	// DCE erases dead nodes after the pass.
	DCE bool `yaml:"dce,omitempty"`

	// ExpectError is the IR error code the pass must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the rewritten function and the trace.
	// Supported types: rewrite_count, node_count, result_shape, converged,
	// equivalent, unchanged, aligned
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the pass outcome.
type Assertion struct {
	// Type specifies the assertion type (see package doc).
	Type string `yaml:"type"`

	// Pattern filters rewrite_count; empty counts every pattern.
	Pattern string `yaml:"pattern,omitempty"`

	// Kind is the node kind counted by node_count (e.g. "pad").
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (rewrite_count, node_count).
	Count int `yaml:"count,omitempty"`

	// Result is the index of the returned value (result_shape).
	Result int `yaml:"result,omitempty"`

	// Shape is the expected shape (result_shape).
	Shape []int64 `yaml:"shape,omitempty"`

	// Value is the expected flag (converged); nil means true.
	Value *bool `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertRewriteCount = "rewrite_count"
	AssertNodeCount    = "node_count"
	AssertResultShape  = "result_shape"
	AssertConverged    = "converged"
	AssertEquivalent   = "equivalent"
	AssertUnchanged    = "unchanged"
	AssertAligned      = "aligned"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The spec path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the spec path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec path relative to base path BEFORE validation
	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Spec); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: spec file not found: %s", scenario.Spec)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
// The config starts from tpp.DefaultConfig so absent keys keep defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := &Scenario{Config: tpp.DefaultConfig()}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}

	if s.Function == "" {
		return fmt.Errorf("function is required")
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRewriteCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rewrite_count", index)
		}
	case AssertNodeCount:
		if _, err := ir.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: node_count: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for node_count", index)
		}
	case AssertResultShape:
		if a.Shape == nil {
			return fmt.Errorf("assertions[%d]: shape is required for result_shape", index)
		}
		if a.Result < 0 {
			return fmt.Errorf("assertions[%d]: result must be non-negative for result_shape", index)
		}
	case AssertConverged, AssertEquivalent, AssertUnchanged, AssertAligned:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
