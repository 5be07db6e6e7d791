package plan

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnware/kiln/internal/ir"
)

func compileString(t *testing.T, src string) (*Plan, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func mustCompile(t *testing.T, src string) *Plan {
	t.Helper()
	p, err := compileString(t, src)
	require.NoError(t, err)
	return p
}

const handoffSrc = `
allocs: [
	{id: "a", type: "f32", count: 1024},
	{id: "b", type: "f32", count: 1024},
]
queues: [
	{
		queue: 0
		items: [
			{kind: "unit_begin", unit: "u0"},
			{kind: "perform", command: {
				kind: "kernel", template: "axpy", type_args: ["f32"],
				shape: {grid_x: 4, block_x: 256},
				args: ["a", "b"],
			}},
			{kind: "emit", event: "ev_x", corr: 1},
			{kind: "unit_end", unit: "u0"},
		]
	},
	{
		queue: 1
		items: [
			{kind: "wait", event: "ev_x", corr: 1},
			{kind: "perform", command: {kind: "copy_d2h", src: "b", bytes: 4096}},
		]
	},
]
`

func TestCompileHandoffPlan(t *testing.T) {
	p := mustCompile(t, handoffSrc)

	require.Len(t, p.Allocs, 2)
	assert.Equal(t, ir.Alloc{ID: "a", Type: ir.Float32, Count: 1024}, p.Allocs[0])

	require.Len(t, p.Queues, 2)
	assert.Equal(t, ir.QueueID(0), p.Queues[0].Queue)
	require.Len(t, p.Queues[0].Items, 4)

	kernel := p.Queues[0].Items[1]
	require.Equal(t, ir.ItemPerform, kernel.Kind)
	require.Equal(t, ir.CmdKernel, kernel.Perform.Kind)
	assert.Equal(t, "axpy", kernel.Perform.Kernel.Template.Name)
	assert.Equal(t, []ir.ScalarType{ir.Float32}, kernel.Perform.Kernel.Template.TypeArgs)
	assert.Equal(t, []ir.AllocID{"a", "b"}, kernel.Perform.Kernel.Args)
	// Unset shape dimensions default to 1.
	assert.Equal(t, ir.LaunchShape{GridX: 4, GridY: 1, GridZ: 1, BlockX: 256, BlockY: 1, BlockZ: 1},
		kernel.Perform.Kernel.Shape)

	emit := p.Queues[0].Items[2]
	assert.Equal(t, ir.ItemEmit, emit.Kind)
	assert.Equal(t, ir.EventRef{Event: "ev_x", Corr: 1}, emit.Event)

	wait := p.Queues[1].Items[0]
	assert.Equal(t, ir.ItemWait, wait.Kind)
	assert.Equal(t, ir.EventRef{Event: "ev_x", Corr: 1}, wait.Event)
}

func TestCompileCommandKinds(t *testing.T) {
	p := mustCompile(t, `
queues: [{
	queue: 0
	items: [
		{kind: "perform", command: {kind: "copy_d2d", dst: "b", src: "a", bytes: 64}},
		{kind: "perform", command: {kind: "copy_h2d", dst: "a", bytes: 64}},
		{kind: "perform", command: {kind: "fill", dst: "a", pattern: 171, bytes: 64}},
		{kind: "perform", command: {kind: "gemm", a: "a", b: "b", c: "c", m: 8, n: 8, k: 8}},
		{kind: "perform", command: {kind: "host_call", template: "finish", type_args: ["i64"], args: ["c"]}},
	]
}]
`)

	items := p.Queues[0].Items
	require.Len(t, items, 5)

	copyCmd := items[0].Perform
	assert.Equal(t, ir.CmdCopyD2D, copyCmd.Kind)
	assert.Equal(t, ir.AllocID("b"), copyCmd.Copy.Dst)
	assert.Equal(t, ir.AllocID("a"), copyCmd.Copy.Src)

	h2d := items[1].Perform
	assert.Equal(t, ir.CmdCopyH2D, h2d.Kind)
	assert.Empty(t, h2d.Copy.Src)

	fill := items[2].Perform
	assert.Equal(t, ir.CmdFill, fill.Kind)
	assert.Equal(t, uint8(0xab), fill.Fill.Pattern)

	gemm := items[3].Perform
	assert.Equal(t, ir.CmdGemm, gemm.Kind)
	assert.Equal(t, []ir.AllocID{"a", "b", "c"}, gemm.AllocRefs())
	assert.Equal(t, int64(8), gemm.Gemm.M)

	host := items[4].Perform
	assert.Equal(t, ir.CmdHostCall, host.Kind)
	assert.Equal(t, ir.DomainHost, host.Host.Template.Domain)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			"missing queues",
			`allocs: []`,
			"queues",
		},
		{
			"unknown item kind",
			`queues: [{queue: 0, items: [{kind: "spin"}]}]`,
			"kind",
		},
		{
			"unknown command kind",
			`queues: [{queue: 0, items: [{kind: "perform", command: {kind: "warp"}}]}]`,
			"kind",
		},
		{
			"unknown scalar type",
			`allocs: [{id: "a", type: "f16", count: 1}], queues: []`,
			"type",
		},
		{
			"kernel without shape",
			`queues: [{queue: 0, items: [{kind: "perform", command: {kind: "kernel", template: "t", type_args: ["f32"], args: []}}]}]`,
			"shape",
		},
		{
			"kernel without type_args",
			`queues: [{queue: 0, items: [{kind: "perform", command: {kind: "kernel", template: "t", shape: {}, args: []}}]}]`,
			"type_args",
		},
		{
			"fill pattern out of range",
			`queues: [{queue: 0, items: [{kind: "perform", command: {kind: "fill", dst: "a", pattern: 300, bytes: 1}}]}]`,
			"pattern",
		},
		{
			"emit missing corr",
			`queues: [{queue: 0, items: [{kind: "emit", event: "ev"}]}]`,
			"corr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	_, err := compileString(t, `queues: [{queue: 0, items: [{kind: "spin"}]}]`)
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Contains(t, compileErr.Error(), "spin")
}
