package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnware/kiln/internal/ir"
)

func TestQueueBuilder(t *testing.T) {
	q := Queue(2, Emit("ev", 1), Wait("ev", 1))
	assert.Equal(t, ir.QueueID(2), q.Queue)
	require.Len(t, q.Items, 2)
	assert.Equal(t, ir.ItemEmit, q.Items[0].Kind)
	assert.Equal(t, ir.ItemWait, q.Items[1].Kind)
}

func TestKernelBuilder(t *testing.T) {
	it := Kernel("axpy", ir.Float32, "x", "y")
	require.Equal(t, ir.ItemPerform, it.Kind)
	require.Equal(t, ir.CmdKernel, it.Perform.Kind)
	assert.Equal(t, ir.DomainKernel, it.Perform.Kernel.Template.Domain)
	assert.Equal(t, []ir.AllocID{"x", "y"}, it.Perform.Kernel.Args)
	assert.Equal(t, int64(1), it.Perform.Kernel.Shape.GridX)
}

func TestCopyBuilders(t *testing.T) {
	d2d := CopyD2D("b", "a", 8)
	assert.Equal(t, []ir.AllocID{"b", "a"}, d2d.Perform.AllocRefs())

	h2d := CopyH2D("a", 8)
	assert.Equal(t, ir.CmdCopyH2D, h2d.Perform.Kind)

	d2h := CopyD2H("a", 8)
	assert.Equal(t, ir.CmdCopyD2H, d2h.Perform.Kind)
}
