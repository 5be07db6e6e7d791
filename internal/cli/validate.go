package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnware/kiln/internal/plan"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationReport is the success payload for JSON output.
type ValidationReport struct {
	Allocs int `json:"allocs"`
	Queues int `json:"queues"`
	Items  int `json:"items"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Validate a CUE plan without compiling it",
		Long: `Validate a CUE plan file (or directory).

Parses the plan and checks its semantic rules: unique allocation and
queue ids, positive element counts, declared allocation references, and
a producer emit for every wait correlation id. Does not schedule.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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

	items := 0
	for _, q := range loadResult.Plan.Queues {
		items += len(q.Items)
	}
	report := ValidationReport{
		Allocs: len(loadResult.Plan.Allocs),
		Queues: len(loadResult.Plan.Queues),
		Items:  items,
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "✓ Plan valid: %d allocation(s), %d queue(s), %d item(s)\n",
		report.Allocs, report.Queues, report.Items)
	return nil
}
