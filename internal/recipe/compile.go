package recipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kilnware/kiln/internal/artifact"
	"github.com/kilnware/kiln/internal/ir"
)

// CompiledRecipe is a recipe plus the native binaries for its two source
// blobs: device bytecode for the kernel unit and a shared library for the
// host unit. Key hashes name the cache entries the binaries came from.
type CompiledRecipe struct {
	*ir.Recipe

	KernelBinary  []byte `json:"-"`
	HostBinary    []byte `json:"-"`
	KernelKeyHash string `json:"kernel_key_hash"`
	HostKeyHash   string `json:"host_key_hash"`
}

// Compiler compiles assembled recipes through the artifact cache: one
// toolchain per code domain, one shared cache.
type Compiler struct {
	Cache  *artifact.Cache
	Kernel *artifact.Toolchain
	Host   *artifact.Toolchain
	Logger *slog.Logger
}

// Compile produces the native binaries for both source blobs, hitting the
// cache where possible. Compile failures carry the compiler log verbatim
// and are fatal; cache corruption is handled inside the cache as a miss.
func (c *Compiler) Compile(ctx context.Context, r *ir.Recipe) (*CompiledRecipe, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	kernelBin, kernelHash, err := artifact.EnsureCompiled(ctx, c.Cache, c.Kernel, r.KernelSource)
	if err != nil {
		return nil, fmt.Errorf("compile kernel unit: %w", err)
	}

	hostBin, hostHash, err := artifact.EnsureCompiled(ctx, c.Cache, c.Host, r.HostSource)
	if err != nil {
		return nil, fmt.Errorf("compile host unit: %w", err)
	}

	logger.Info("recipe compiled",
		"build_token", r.BuildToken,
		"kernel_key", kernelHash,
		"host_key", hostHash)

	return &CompiledRecipe{
		Recipe:        r,
		KernelBinary:  kernelBin,
		HostBinary:    hostBin,
		KernelKeyHash: kernelHash,
		HostKeyHash:   hostHash,
	}, nil
}
