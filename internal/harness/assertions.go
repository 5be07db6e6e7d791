package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It includes the
// full trace so the failure reads without re-running the scenario.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trace    []string // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, line := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, line)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the trace and returns
// the failure messages. Does not fail fast.
func EvaluateAssertions(trace []string, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertTraceContains checks that some call line contains the substring.
func assertTraceContains(trace []string, assertion Assertion) error {
	for _, line := range trace {
		if strings.Contains(line, assertion.Call) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("a call line containing %q", assertion.Call),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the call substrings first appear in the
// given order. Matches don't need to be consecutive.
func assertTraceOrder(trace []string, assertion Assertion) error {
	next := 0
	for _, line := range trace {
		if next < len(assertion.Calls) && strings.Contains(line, assertion.Calls[next]) {
			next++
		}
	}
	if next == len(assertion.Calls) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("calls in order %v", assertion.Calls),
		Actual:   fmt.Sprintf("no line matching %q after its predecessors", assertion.Calls[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count call lines contain the
// substring.
func assertTraceCount(trace []string, assertion Assertion) error {
	count := 0
	for _, line := range trace {
		if strings.Contains(line, assertion.Call) {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d call line(s) containing %q", assertion.Count, assertion.Call),
		Actual:   fmt.Sprintf("found %d", count),
		Trace:    trace,
	}
}
