package harness

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/kilnware/kiln/internal/ir"
	"github.com/kilnware/kiln/internal/plan"
	"github.com/kilnware/kiln/internal/recipe"
	"github.com/kilnware/kiln/internal/sequence"
	"github.com/kilnware/kiln/internal/testutil"
)

// Result holds the outcome of running a scenario: the rendered call
// trace, the deadlock flag, and any assertion failures.
type Result struct {
	BuildToken string
	Trace      []string // rendered init, exec, dispose call lines in order
	Deadlock   bool
	Errors     []string
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{}
}

// AddError records an assertion or outcome failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Passed reports whether the scenario produced no failures.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Load and compile the CUE plan
//  2. Validate plan semantics
//  3. Assemble with a fixed build token
//  4. Check the outcome against scenario.Expect
//  5. Evaluate assertions against the rendered trace
//
// Assembly uses a fixed token source so identical plans produce
// identical traces for golden file comparison.
func Run(scenario *Scenario) (*Result, error) {
	p, err := loadPlan(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if verrs := plan.Validate(p); len(verrs) > 0 {
		return nil, fmt.Errorf("invalid plan: %v", verrs[0])
	}

	tokens := testutil.NewFixedTokenSource(scenario.BuildToken)
	asm := recipe.NewAssembler(
		recipe.WithTokenSource(tokens),
		// Suppress logs in tests
		recipe.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := NewResult()
	result.BuildToken = tokens.Token()

	r, err := asm.Build(p.Queues, p.Allocs)
	switch {
	case err == nil:
		if scenario.Expect == ExpectDeadlock {
			result.AddError("expected deadlock, but plan assembled into a recipe")
		}
		result.Trace = renderTrace(r)
	case sequence.IsDeadlock(err):
		result.Deadlock = true
		if scenario.Expect != ExpectDeadlock {
			result.AddError(fmt.Sprintf("unexpected deadlock: %v", err))
		}
	default:
		return nil, fmt.Errorf("failed to assemble recipe: %w", err)
	}

	for _, msg := range EvaluateAssertions(result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// renderTrace flattens a recipe's three call lists into one ordered list
// of rendered lines.
func renderTrace(r *ir.Recipe) []string {
	lines := make([]string, 0, len(r.InitCalls)+len(r.ExecCalls)+len(r.DisposeCalls))
	for _, calls := range [][]ir.Call{r.InitCalls, r.ExecCalls, r.DisposeCalls} {
		for _, c := range calls {
			lines = append(lines, c.TraceLine())
		}
	}
	return lines
}

// loadPlan compiles the CUE plan file at path. The plan struct lives
// under the top-level "plan" field.
func loadPlan(path string) (*plan.Plan, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{filepath.Base(path)}, &load.Config{Dir: filepath.Dir(path)})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building %s: %w", path, err)
	}
	planVal := value.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, fmt.Errorf("%s: no top-level \"plan\" field", path)
	}
	return plan.Compile(planVal)
}
