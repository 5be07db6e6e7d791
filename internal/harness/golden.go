package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/kilnware/kiln/internal/ir"
)

// TraceSnapshot captures the full call trace for a scenario execution.
// Serialized as canonical JSON so golden comparison is byte-stable.
type TraceSnapshot struct {
	ScenarioName string
	BuildToken   string
	Deadlock     bool
	Trace        []string
}

// toCanonicalMap converts the snapshot to a map[string]any for
// ir.MarshalCanonical, which only handles primitives and containers.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, line := range s.Trace {
		traceList[i] = line
	}
	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.BuildToken != "" {
		m["build_token"] = s.BuildToken
	}
	if s.Deadlock {
		m["deadlock"] = true
	}
	return m
}

// RunWithGolden executes a scenario and compares the trace against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result's trace against the
// golden file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		BuildToken:   result.BuildToken,
		Deadlock:     result.Deadlock,
		Trace:        result.Trace,
	}

	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
