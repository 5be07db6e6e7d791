package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnware/kiln/internal/artifact"
)

// CacheOptions holds flags for the cache command group.
type CacheOptions struct {
	*RootOptions
	Dir string // cache directory
}

// NewCacheCommand creates the cache command group (ls, rm).
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the compiled-artifact cache",
	}

	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "cache directory (required)")
	cmd.MarkPersistentFlagRequired("dir")

	cmd.AddCommand(newCacheLsCommand(opts))
	cmd.AddCommand(newCacheRmCommand(opts))

	return cmd
}

func newCacheLsCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls",
		Short:         "List cached artifacts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheLs(opts, cmd)
		},
	}
}

func newCacheRmCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <key-hash>...",
		Short:         "Remove cached artifacts by key hash",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheRm(opts, args, cmd)
		},
	}
}

func runCacheLs(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cache, err := artifact.Open(opts.Dir, newCommandLogger(formatter))
	if err != nil {
		return outputFailure(formatter, ErrCodeCacheFailed, err.Error(), nil, ExitCommandError)
	}
	defer cache.Close()

	entries, err := cache.Entries(context.Background())
	if err != nil {
		return outputFailure(formatter, ErrCodeCacheFailed, err.Error(), nil, ExitCommandError)
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "cache is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%s  %8d B  %s\n", e.KeyHash, e.ArtifactBytes, e.CreatedAt)
	}
	fmt.Fprintf(formatter.Writer, "%d artifact(s)\n", len(entries))
	return nil
}

func runCacheRm(opts *CacheOptions, hashes []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cache, err := artifact.Open(opts.Dir, newCommandLogger(formatter))
	if err != nil {
		return outputFailure(formatter, ErrCodeCacheFailed, err.Error(), nil, ExitCommandError)
	}
	defer cache.Close()

	for _, h := range hashes {
		if err := cache.Remove(context.Background(), h); err != nil {
			return outputFailure(formatter, ErrCodeCacheFailed,
				fmt.Sprintf("removing %s: %v", h, err), nil, ExitCommandError)
		}
		formatter.VerboseLog("removed %s", h)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]interface{}{"removed": hashes})
	}
	fmt.Fprintf(formatter.Writer, "✓ Removed %d artifact(s)\n", len(hashes))
	return nil
}
