package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/kilnware/kiln/internal/plan"
)

// LoadResult contains the results of loading a plan from a path.
type LoadResult struct {
	Plan      *plan.Plan
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during plan loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPlan loads and compiles a CUE plan from a file or directory.
// A directory is loaded as one CUE instance; a .cue file is loaded alone.
// The plan itself lives under the top-level "plan" field.
func LoadPlan(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing plan path: %v", err)}
	}

	var (
		dir   string
		args  []string
		count int
	)
	if info.IsDir() {
		files, ferr := FindCUEFiles(path)
		if ferr != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", ferr)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		dir, args, count = path, []string{"."}, len(files)
	} else {
		if !strings.HasSuffix(path, ".cue") {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		dir, args, count = filepath.Dir(path), []string{filepath.Base(path)}, 1
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	planVal := value.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoPlan, Message: "no top-level \"plan\" field in CUE value"}
	}

	p, cerr := plan.Compile(planVal)
	if cerr != nil {
		return nil, convertCompileError(cerr)
	}

	return &LoadResult{Plan: p, CUEValue: value, FileCount: count}, nil
}

// FindCUEFiles returns all .cue files directly under dir (non-recursive).
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".cue") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a plan.CompileError to a LoadError with position.
func convertCompileError(err error) *LoadError {
	if compileErr, ok := err.(*plan.CompileError); ok {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeNoPlan        = "E008" // Missing top-level plan field
	ErrCodeCompileFailed = "E009" // Plan compilation error

	// Assembly and native compilation errors
	ErrCodeDeadlock       = "E020" // Plan cannot be scheduled without deadlock
	ErrCodeAssembleFailed = "E021" // Recipe assembly failed
	ErrCodeCacheFailed    = "E022" // Artifact cache error
	ErrCodeNativeCompile  = "E023" // Native toolchain compile failed

	// Plan validation errors are the E2xx codes owned by the plan package.
)
