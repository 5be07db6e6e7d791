package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CompileError reports a native compiler failure: non-zero exit with the
// captured log attached verbatim. Fatal for the build; there is no
// automatic fallback to different flags.
type CompileError struct {
	Args []string // full compiler invocation
	Log  string   // combined stdout+stderr, verbatim
	Err  error    // underlying exec error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("native compile failed (%v): %s\n%s",
		e.Err, strings.Join(e.Args, " "), e.Log)
}

// Unwrap returns the underlying exec error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileFailure returns true if the error is a native compiler failure.
// Uses errors.As to handle wrapped errors.
func IsCompileFailure(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Toolchain describes one native compiler invocation boundary: the
// compiler binary, its ordered argument list, and the header files the
// generated source depends on. The exit code and captured log are the
// sole feedback channel.
type Toolchain struct {
	// Compiler is the compiler/linker binary (e.g. "nvcc", "c++").
	Compiler string

	// Args is the full ordered argument list before input/output paths.
	// Order is part of the cache key: reordering flags invalidates entries.
	Args []string

	// Headers maps header file name to content. Headers are materialized
	// into the build directory and fingerprinted into the cache key.
	Headers map[string][]byte

	// SourceName is the file name the source is written under
	// (e.g. "kernels.cu", "host.cc").
	SourceName string

	Logger *slog.Logger
}

// Key builds the artifact cache key for compiling source with this
// toolchain.
func (t *Toolchain) Key(source string) Key {
	return NewKey(source, t.Headers, append([]string{t.Compiler}, t.Args...))
}

// Compile writes the source and headers into a fresh temporary build
// directory, invokes the compiler, and returns the produced binary.
// The build directory is removed on every exit path, success or failure.
func (t *Toolchain) Compile(ctx context.Context, source string) ([]byte, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := os.MkdirTemp("", "kiln-build-*")
	if err != nil {
		return nil, fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, t.SourceName)
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}
	for name, content := range t.Headers {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return nil, fmt.Errorf("write header %s: %w", name, err)
		}
	}

	outPath := filepath.Join(dir, "artifact.bin")
	args := append(append([]string{}, t.Args...), "-o", outPath, srcPath)

	cmd := exec.CommandContext(ctx, t.Compiler, args...)
	cmd.Dir = dir
	logOut, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &CompileError{
			Args: append([]string{t.Compiler}, args...),
			Log:  string(logOut),
			Err:  err,
		}
	}

	blob, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &CompileError{
			Args: append([]string{t.Compiler}, args...),
			Log:  string(logOut),
			Err:  fmt.Errorf("compiler exited 0 but produced no artifact: %w", err),
		}
	}

	logger.Debug("native compile succeeded",
		"compiler", t.Compiler, "source", t.SourceName, "bytes", len(blob))
	return blob, nil
}

// EnsureCompiled returns the compiled artifact for source under the
// toolchain, consulting the cache first and storing the result of a fresh
// compile before returning it. The returned hash names the cache entry.
func EnsureCompiled(ctx context.Context, cache *Cache, t *Toolchain, source string) ([]byte, string, error) {
	key := t.Key(source)
	hash, err := key.Hash()
	if err != nil {
		return nil, "", err
	}

	if blob, ok, err := cache.Get(ctx, key); err != nil {
		return nil, "", err
	} else if ok {
		return blob, hash, nil
	}

	blob, err := t.Compile(ctx, source)
	if err != nil {
		return nil, "", err
	}
	if err := cache.Put(ctx, key, blob); err != nil {
		return nil, "", err
	}
	return blob, hash, nil
}
