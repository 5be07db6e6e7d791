package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnware/kiln/internal/ir"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileValidPlan(t *testing.T) {
	out, err := runCommand(t, "compile", "testdata/handoff.cue")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 queue(s), 2 allocation(s)")
	assert.Contains(t, out, "exec: 4 call(s)")
}

func TestCompileValidPlanJSON(t *testing.T) {
	out, err := runCommand(t, "compile", "testdata/handoff.cue", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data)

	// The payload is the recipe itself.
	recipe, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var r ir.Recipe
	require.NoError(t, json.Unmarshal(recipe, &r))
	assert.Equal(t, ir.RecipeVersion, r.Version)
	assert.NotEmpty(t, r.BuildToken)
	assert.Len(t, r.ExecCalls, 4)
}

func TestCompileWritesOutputFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "recipe.json")
	_, err := runCommand(t, "compile", "testdata/handoff.cue", "-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var r ir.Recipe
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, ir.RecipeVersion, r.Version)
}

func TestCompileInvalidPlanFailsValidation(t *testing.T) {
	out, err := runCommand(t, "compile", "testdata/missing_emit.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E204")
}

func TestCompileDeadlockPlan(t *testing.T) {
	out, err := runCommand(t, "compile", "testdata/cross_wait.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeDeadlock)
}

func TestCompileMissingPlanPath(t *testing.T) {
	_, err := runCommand(t, "compile", filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileCacheDirRequiresToolchains(t *testing.T) {
	_, err := runCommand(t, "compile", "testdata/handoff.cue", "--cache-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--kernel-cc")
}

func TestCompileWithNativeToolchains(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}
	cc := filepath.Join(t.TempDir(), "fakecc")
	require.NoError(t, os.WriteFile(cc, []byte("#!/bin/sh\ncp \"$3\" \"$2\"\n"), 0o755))

	cacheDir := t.TempDir()
	out, err := runCommand(t, "compile", "testdata/handoff.cue",
		"--cache-dir", cacheDir, "--kernel-cc", cc, "--host-cc", cc,
		"--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	payload, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var compiled struct {
		KernelKeyHash string `json:"kernel_key_hash"`
		HostKeyHash   string `json:"host_key_hash"`
	}
	require.NoError(t, json.Unmarshal(payload, &compiled))
	assert.Len(t, compiled.KernelKeyHash, 64)
	assert.Len(t, compiled.HostKeyHash, 64)

	// The cache index was created alongside the artifacts.
	_, err = os.Stat(filepath.Join(cacheDir, "index.db"))
	assert.NoError(t, err)
}
