package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnware/kiln/internal/ir"
	"github.com/kilnware/kiln/internal/plan"
	"github.com/kilnware/kiln/internal/recipe"
	"github.com/kilnware/kiln/internal/sequence"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Section string // "all" | "init" | "exec" | "dispose"
}

// TraceResult is the JSON payload: rendered call lines per section plus
// the canonical trace hash over all of them.
type TraceResult struct {
	BuildToken string   `json:"build_token"`
	Init       []string `json:"init"`
	Exec       []string `json:"exec"`
	Dispose    []string `json:"dispose"`
	TraceHash  string   `json:"trace_hash"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <plan>",
		Short: "Print the scheduled call trace for a plan",
		Long: `Compile a plan and print the resulting call trace.

Renders every init, exec, and dispose call in schedule order, one line
per call, plus a canonical hash over the full trace. Two plans that
schedule identically produce identical hashes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Section, "section", "all", "section to print (all|init|exec|dispose)")

	return cmd
}

func runTrace(opts *TraceOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	switch opts.Section {
	case "all", "init", "exec", "dispose":
	default:
		return outputFailure(formatter, ErrCodeGeneric,
			fmt.Sprintf("invalid section %q: must be all, init, exec, or dispose", opts.Section),
			nil, ExitCommandError)
	}

	loadResult, err := LoadPlan(planPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputFailure(formatter, loadErr.Code, loadErr.Message, nil, ExitCommandError)
		}
		return outputFailure(formatter, ErrCodeGeneric, err.Error(), nil, ExitCommandError)
	}

	if verrs := plan.Validate(loadResult.Plan); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	asm := recipe.NewAssembler(recipe.WithLogger(newCommandLogger(formatter)))
	r, err := asm.Build(loadResult.Plan.Queues, loadResult.Plan.Allocs)
	if err != nil {
		if sequence.IsDeadlock(err) {
			return outputFailure(formatter, ErrCodeDeadlock, err.Error(), nil, ExitFailure)
		}
		return outputFailure(formatter, ErrCodeAssembleFailed, err.Error(), nil, ExitFailure)
	}

	result := TraceResult{
		BuildToken: r.BuildToken,
		Init:       renderCalls(r.InitCalls),
		Exec:       renderCalls(r.ExecCalls),
		Dispose:    renderCalls(r.DisposeCalls),
	}
	hash, err := ir.TraceHash(allLines(result))
	if err != nil {
		return outputFailure(formatter, ErrCodeGeneric, err.Error(), nil, ExitFailure)
	}
	result.TraceHash = hash

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	sections := []struct {
		name  string
		lines []string
	}{
		{"init", result.Init},
		{"exec", result.Exec},
		{"dispose", result.Dispose},
	}
	seq := 0
	for _, s := range sections {
		if opts.Section != "all" && opts.Section != s.name {
			seq += len(s.lines)
			continue
		}
		fmt.Fprintf(formatter.Writer, "%s:\n", s.name)
		for _, line := range s.lines {
			fmt.Fprintf(formatter.Writer, "  %4d  %s\n", seq, line)
			seq++
		}
	}
	if opts.Section == "all" {
		fmt.Fprintf(formatter.Writer, "trace: %s\n", result.TraceHash)
	}
	return nil
}

func renderCalls(calls []ir.Call) []string {
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.TraceLine()
	}
	return lines
}

func allLines(r TraceResult) []string {
	lines := make([]string, 0, len(r.Init)+len(r.Exec)+len(r.Dispose))
	lines = append(lines, r.Init...)
	lines = append(lines, r.Exec...)
	lines = append(lines, r.Dispose...)
	return lines
}
