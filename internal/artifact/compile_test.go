package artifact

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler writes a shell script that stands in for a native
// compiler. The script sees the toolchain's trailing "-o <out> <src>"
// arguments.
func fakeCompiler(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakecc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestToolchainCompile(t *testing.T) {
	// Copies the source file to the artifact path: $1=-o $2=out $3=src.
	cc := fakeCompiler(t, `cp "$3" "$2"`)
	tc := &Toolchain{
		Compiler:   cc,
		Headers:    map[string][]byte{"kiln_device.h": []byte("// header")},
		SourceName: "kernel.cu",
		Logger:     testLogger(),
	}

	blob, err := tc.Compile(context.Background(), "generated source")
	require.NoError(t, err)
	assert.Equal(t, []byte("generated source"), blob)
}

func TestToolchainCompileFailureCarriesLog(t *testing.T) {
	cc := fakeCompiler(t, `echo "kernel.cu:3: error: no such template" >&2; exit 2`)
	tc := &Toolchain{Compiler: cc, SourceName: "kernel.cu", Logger: testLogger()}

	_, err := tc.Compile(context.Background(), "bad source")
	require.Error(t, err)
	assert.True(t, IsCompileFailure(err))

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Contains(t, compileErr.Log, "no such template")
	assert.Equal(t, cc, compileErr.Args[0])
}

func TestToolchainCompileNoArtifact(t *testing.T) {
	// Exits 0 without producing the output file.
	cc := fakeCompiler(t, `exit 0`)
	tc := &Toolchain{Compiler: cc, SourceName: "kernel.cu", Logger: testLogger()}

	_, err := tc.Compile(context.Background(), "source")
	require.Error(t, err)
	assert.True(t, IsCompileFailure(err))
	assert.Contains(t, err.Error(), "produced no artifact")
}

func TestToolchainKeyIncludesCompilerAndArgs(t *testing.T) {
	tc := &Toolchain{
		Compiler: "nvcc",
		Args:     []string{"-O2"},
		Headers:  map[string][]byte{"h.h": []byte("x")},
	}
	key := tc.Key("source")

	assert.Equal(t, []string{"nvcc", "-O2"}, key.Args)
	assert.Equal(t, "source", key.Source)
	assert.Contains(t, key.Headers, "h.h")
}

func TestEnsureCompiledUsesCache(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "invocations")
	// Appends one line per invocation, then copies source to output.
	cc := fakeCompiler(t, `echo run >> "`+counter+`"; cp "$3" "$2"`)

	cache := openTestCache(t)
	tc := &Toolchain{Compiler: cc, SourceName: "kernel.cu", Logger: testLogger()}
	ctx := context.Background()

	blob1, hash1, err := EnsureCompiled(ctx, cache, tc, "source")
	require.NoError(t, err)
	blob2, hash2, err := EnsureCompiled(ctx, cache, tc, "source")
	require.NoError(t, err)

	assert.Equal(t, blob1, blob2)
	assert.Equal(t, hash1, hash2)

	// Second call was served from the cache: exactly one compiler run.
	runs, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(runs))

	// A different source compiles fresh under a different hash.
	_, hash3, err := EnsureCompiled(ctx, cache, tc, "source2")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash3)
}

func TestEnsureCompiledSurfacesCompileError(t *testing.T) {
	cc := fakeCompiler(t, `exit 1`)
	cache := openTestCache(t)
	tc := &Toolchain{Compiler: cc, SourceName: "kernel.cu", Logger: testLogger()}

	_, _, err := EnsureCompiled(context.Background(), cache, tc, "source")
	require.Error(t, err)
	assert.True(t, IsCompileFailure(err))

	// Failed compiles are never cached.
	entries, err := cache.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
