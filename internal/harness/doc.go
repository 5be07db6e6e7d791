// Package harness provides conformance testing for kiln plans.
//
// The harness loads a CUE plan, assembles it into a recipe with a fixed
// build token, and validates the resulting call trace against scenario
// assertions and golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	plan: plans/handoff.cue
//	expect: recipe
//	assertions:
//	  - type: trace_contains
//	    call: "wait_event ev_xfer"
//	  - type: trace_order
//	    calls: ["record_event ev_xfer", "wait_event ev_xfer"]
//	  - type: trace_count
//	    call: "launch_kernel"
//	    count: 2
//
// The plan path is resolved relative to the scenario file. Scenarios
// expecting an unschedulable plan set expect: deadlock; their assertions
// run against the (empty) trace and the deadlock flag.
//
// # Assertion Types
//
//   - trace_contains: a call line containing the substring appears in the trace
//   - trace_order: call substrings first appear in the given order
//   - trace_count: exactly N call lines contain the substring
//
// # Deterministic Testing
//
// Scenarios assemble with a fixed build token (scenario.build_token or
// "test-build-default"), so the same plan produces a byte-identical
// trace across runs. Golden files under testdata/golden hold the
// canonical JSON snapshot of each scenario's trace.
package harness
