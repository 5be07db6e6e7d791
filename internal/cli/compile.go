package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnware/kiln/internal/artifact"
	"github.com/kilnware/kiln/internal/ir"
	"github.com/kilnware/kiln/internal/plan"
	"github.com/kilnware/kiln/internal/recipe"
	"github.com/kilnware/kiln/internal/sequence"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path for the recipe JSON
	CacheDir string // artifact cache directory; enables native compilation
	KernelCC string // kernel unit compiler binary
	HostCC   string // host unit compiler binary
}

// CompileStats holds summary statistics for text output.
type CompileStats struct {
	Allocs  int
	Queues  int
	Init    int
	Exec    int
	Dispose int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan>",
		Short: "Compile a CUE plan to an execution recipe",
		Long: `Compile a CUE plan file (or directory) to an execution recipe.

The compiler parses the plan, validates it, schedules the queue items
into a deadlock-free call sequence, and outputs the recipe as JSON.
With --cache-dir and both toolchain flags it also compiles the recipe's
source blobs natively through the artifact cache.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "artifact cache directory (enables native compilation)")
	cmd.Flags().StringVar(&opts.KernelCC, "kernel-cc", "", "kernel unit compiler")
	cmd.Flags().StringVar(&opts.HostCC, "host-cc", "", "host unit compiler")

	return cmd
}

func runCompile(opts *CompileOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
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

	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loadResult.FileCount, planPath)

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

	formatter.VerboseLog("Assembled recipe %s: %d init, %d exec, %d dispose call(s)",
		r.BuildToken, len(r.InitCalls), len(r.ExecCalls), len(r.DisposeCalls))

	var result interface{} = r

	// Native compilation is opt-in: all three flags must be set.
	if opts.CacheDir != "" {
		if opts.KernelCC == "" || opts.HostCC == "" {
			return outputFailure(formatter, ErrCodeNativeCompile,
				"--cache-dir requires both --kernel-cc and --host-cc", nil, ExitCommandError)
		}
		compiled, cerr := compileNative(opts, formatter, r)
		if cerr != nil {
			return cerr
		}
		result = compiled
	}

	if opts.Output != "" {
		if werr := writeRecipeToFile(result, opts.Output); werr != nil {
			return outputFailure(formatter, ErrCodeWriteFailed,
				fmt.Sprintf("writing output file: %v", werr), nil, ExitCommandError)
		}
		formatter.VerboseLog("Wrote recipe to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result, compileStats(loadResult.Plan, r), opts.Output)
}

func compileNative(opts *CompileOptions, formatter *OutputFormatter, r *ir.Recipe) (*recipe.CompiledRecipe, error) {
	cache, err := artifact.Open(opts.CacheDir, newCommandLogger(formatter))
	if err != nil {
		return nil, outputFailure(formatter, ErrCodeCacheFailed, err.Error(), nil, ExitCommandError)
	}
	defer cache.Close()

	compiler := &recipe.Compiler{
		Cache:  cache,
		Kernel: &artifact.Toolchain{Compiler: opts.KernelCC, SourceName: "kernel.cu"},
		Host:   &artifact.Toolchain{Compiler: opts.HostCC, SourceName: "host.cpp"},
		Logger: newCommandLogger(formatter),
	}
	compiled, err := compiler.Compile(context.Background(), r)
	if err != nil {
		var compileErr *artifact.CompileError
		if errors.As(err, &compileErr) {
			return nil, outputFailure(formatter, ErrCodeNativeCompile, err.Error(), compileErr.Log, ExitFailure)
		}
		return nil, outputFailure(formatter, ErrCodeCacheFailed, err.Error(), nil, ExitFailure)
	}
	return compiled, nil
}

func compileStats(p *plan.Plan, r *ir.Recipe) CompileStats {
	return CompileStats{
		Allocs:  len(p.Allocs),
		Queues:  len(p.Queues),
		Init:    len(r.InitCalls),
		Exec:    len(r.ExecCalls),
		Dispose: len(r.DisposeCalls),
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result interface{}, stats CompileStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d queue(s), %d allocation(s)\n", stats.Queues, stats.Allocs)
	fmt.Fprintf(formatter.Writer, "  init: %d call(s), exec: %d call(s), dispose: %d call(s)\n",
		stats.Init, stats.Exec, stats.Dispose)
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "  recipe written to %s\n", outputFile)
	}
	return nil
}

// outputValidationErrors reports plan validation failures with exit code 1.
func outputValidationErrors(formatter *OutputFormatter, verrs []plan.ValidationError) error {
	if formatter.Format == "json" {
		formatter.Error(verrs[0].Code, "plan validation failed", verrs)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Plan validation failed with %d error(s):\n", len(verrs))
		for _, ve := range verrs {
			fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", ve.Code, ve.Field, ve.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("plan validation failed with %d error(s)", len(verrs)))
}

// outputFailure reports an error in the configured format and returns an
// ExitError carrying the given exit code.
func outputFailure(formatter *OutputFormatter, code, message string, details interface{}, exitCode int) error {
	formatter.Error(code, message, details)
	return NewExitError(exitCode, message)
}

func writeRecipeToFile(result interface{}, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// newCommandLogger builds a slog logger that honors --verbose: debug level
// when verbose, warn otherwise, always to the diagnostic writer.
func newCommandLogger(formatter *OutputFormatter) *slog.Logger {
	level := slog.LevelWarn
	if formatter.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{Level: level}))
}
