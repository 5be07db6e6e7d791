package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlanFile(t *testing.T) {
	result, err := LoadPlan("testdata/handoff.cue")
	require.NoError(t, err)

	assert.Equal(t, 1, result.FileCount)
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Allocs, 2)
	assert.Len(t, result.Plan.Queues, 2)
}

func TestLoadPlanDirectory(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile("testdata/handoff.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.cue"), src, 0o644))

	result, err := LoadPlan(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	assert.Len(t, result.Plan.Queues, 2)
}

func TestLoadPlanErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		wantCode string
	}{
		{
			"path not found",
			func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.cue") },
			ErrCodeNotFound,
		},
		{
			"empty directory",
			func(t *testing.T) string { return t.TempDir() },
			ErrCodeNoFiles,
		},
		{
			"not a cue file",
			func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "plan.yaml")
				require.NoError(t, os.WriteFile(path, []byte("plan: {}"), 0o644))
				return path
			},
			ErrCodeNoFiles,
		},
		{
			"missing plan field",
			func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "plan.cue")
				require.NoError(t, os.WriteFile(path, []byte(`other: 1`), 0o644))
				return path
			},
			ErrCodeNoPlan,
		},
		{
			"plan compile error",
			func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "plan.cue")
				require.NoError(t, os.WriteFile(path,
					[]byte(`plan: {queues: [{queue: 0, items: [{kind: "spin"}]}]}`), 0o644))
				return path
			},
			ErrCodeCompileFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPlan(tt.setup(t))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.wantCode, loadErr.Code)
		})
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("a: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.cue"), 0o755))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "a.cue"), files[0])
}
