package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one plan, one expected
// outcome, and assertions on the scheduled call trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the path to the CUE plan file, relative to the scenario
	// file location.
	Plan string `yaml:"plan"`

	// Expect is the expected assembly outcome: "recipe" (default) or
	// "deadlock" for plans that cannot be scheduled.
	Expect string `yaml:"expect,omitempty"`

	// Assertions validate the resulting call trace.
	// Supported types: trace_contains, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// BuildToken is an optional fixed build token for deterministic tests.
	// If empty, defaults to "test-build-default" for golden file comparison.
	BuildToken string `yaml:"build_token,omitempty"`
}

// Assertion validates the call trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call line containing Call appears
	// - "trace_order": Calls first appear in the given order
	// - "trace_count": exactly Count call lines contain Call
	Type string `yaml:"type"`

	// Call is the call line substring (trace_contains, trace_count).
	Call string `yaml:"call,omitempty"`

	// Calls are the ordered call line substrings (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of matching lines (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// Expected outcome constants.
const (
	ExpectRecipe   = "recipe"
	ExpectDeadlock = "deadlock"
)

// LoadScenario reads and parses a scenario YAML file, resolving the plan
// path relative to the scenario file. Returns an error if the file is
// malformed, contains unknown fields (typos), or is missing required
// fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) {
		scenario.Plan = filepath.Join(filepath.Dir(path), scenario.Plan)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}

	switch s.Expect {
	case "":
		s.Expect = ExpectRecipe
	case ExpectRecipe, ExpectDeadlock:
	default:
		return fmt.Errorf("expect must be %q or %q, got %q", ExpectRecipe, ExpectDeadlock, s.Expect)
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains:
			if a.Call == "" {
				return fmt.Errorf("assertions[%d]: trace_contains requires call", i)
			}
		case AssertTraceOrder:
			if len(a.Calls) < 2 {
				return fmt.Errorf("assertions[%d]: trace_order requires at least two calls", i)
			}
		case AssertTraceCount:
			if a.Call == "" {
				return fmt.Errorf("assertions[%d]: trace_count requires call", i)
			}
			if a.Count < 0 {
				return fmt.Errorf("assertions[%d]: trace_count requires a non-negative count", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}

	return nil
}
