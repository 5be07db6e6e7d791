package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/two_queue_handoff.yaml")
	require.NoError(t, err)

	assert.Equal(t, "two_queue_handoff", scenario.Name)
	assert.Equal(t, ExpectRecipe, scenario.Expect)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "..", "plans", "handoff.cue"), scenario.Plan)
	require.Len(t, scenario.Assertions, 3)
	assert.Equal(t, AssertTraceOrder, scenario.Assertions[0].Type)
}

func TestLoadScenarioErrors(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "scenario.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing name",
			"description: d\nplan: p.cue\n",
			"name is required",
		},
		{
			"missing plan",
			"name: n\ndescription: d\n",
			"plan is required",
		},
		{
			"unknown field typo",
			"name: n\ndescription: d\nplan: p.cue\nassertion: []\n",
			"assertion",
		},
		{
			"bad expect",
			"name: n\ndescription: d\nplan: p.cue\nexpect: maybe\n",
			"expect must be",
		},
		{
			"trace_order with one call",
			"name: n\ndescription: d\nplan: p.cue\nassertions:\n  - type: trace_order\n    calls: [\"x\"]\n",
			"at least two calls",
		},
		{
			"unknown assertion type",
			"name: n\ndescription: d\nplan: p.cue\nassertions:\n  - type: trace_matches\n",
			"unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(write(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunHandoffScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/two_queue_handoff.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Passed(), "failures: %v", result.Errors)
	assert.Equal(t, "test-build-default", result.BuildToken)
	assert.False(t, result.Deadlock)
	assert.Len(t, result.Trace, 16)
}

func TestRunDeadlockScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cross_wait_deadlock.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Passed(), "failures: %v", result.Errors)
	assert.True(t, result.Deadlock)
	assert.Empty(t, result.Trace)
}

func TestRunUnexpectedOutcomeFails(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/two_queue_handoff.yaml")
	require.NoError(t, err)
	scenario.Expect = ExpectDeadlock

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
}

func TestRunMissingPlan(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "missing plan file",
		Plan:        filepath.Join(t.TempDir(), "nope.cue"),
		Expect:      ExpectRecipe,
	}

	_, err := Run(scenario)
	require.Error(t, err)
}

func TestEvaluateAssertions(t *testing.T) {
	trace := []string{
		"record_event q0 ev_x corr=1",
		"wait_event q1 ev_x corr=1",
		"copy_d2d q1 c<-b bytes=64",
	}

	tests := []struct {
		name      string
		assertion Assertion
		pass      bool
	}{
		{"contains hit", Assertion{Type: AssertTraceContains, Call: "wait_event q1"}, true},
		{"contains miss", Assertion{Type: AssertTraceContains, Call: "launch_kernel"}, false},
		{"order hit", Assertion{Type: AssertTraceOrder, Calls: []string{"record_event", "copy_d2d"}}, true},
		{"order miss", Assertion{Type: AssertTraceOrder, Calls: []string{"copy_d2d", "record_event"}}, false},
		{"count hit", Assertion{Type: AssertTraceCount, Call: "ev_x", Count: 2}, true},
		{"count miss", Assertion{Type: AssertTraceCount, Call: "ev_x", Count: 1}, false},
		{"count zero", Assertion{Type: AssertTraceCount, Call: "gemm", Count: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(trace, []Assertion{tt.assertion})
			if tt.pass {
				assert.Empty(t, failures)
			} else {
				assert.Len(t, failures, 1)
			}
		})
	}
}

func TestAssertionErrorIncludesTrace(t *testing.T) {
	err := assertTraceContains([]string{"fill q0 a pattern=0x00 bytes=8"}, Assertion{
		Type: AssertTraceContains,
		Call: "gemm",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemm")
	assert.Contains(t, err.Error(), "fill q0 a pattern=0x00 bytes=8")
}
