package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnware/kiln/internal/ir"
	"github.com/kilnware/kiln/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateAcceptsHandoffPlan(t *testing.T) {
	p := &Plan{
		Allocs: []ir.Alloc{
			testutil.Alloc("a", ir.Float32, 1024),
			testutil.Alloc("b", ir.Float32, 1024),
		},
		Queues: []ir.QueueItems{
			testutil.Queue(0,
				testutil.CopyD2D("b", "a", 64),
				testutil.Emit("ev_x", 1),
			),
			testutil.Queue(1,
				testutil.Wait("ev_x", 1),
				testutil.CopyD2H("b", 64),
			),
		},
	}

	assert.Empty(t, Validate(p))
}

func TestValidateDuplicateAllocID(t *testing.T) {
	p := &Plan{
		Allocs: []ir.Alloc{
			testutil.Alloc("a", ir.Float32, 1),
			testutil.Alloc("a", ir.Int64, 2),
		},
		Queues: []ir.QueueItems{testutil.Queue(0)},
	}

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateAllocID, errs[0].Code)
	assert.Equal(t, "allocs[1].id", errs[0].Field)
}

func TestValidateNonPositiveCount(t *testing.T) {
	p := &Plan{
		Allocs: []ir.Alloc{
			testutil.Alloc("a", ir.Float32, 0),
			testutil.Alloc("b", ir.Float32, -4),
		},
	}

	errs := Validate(p)
	assert.Equal(t, []string{ErrBadAllocCount, ErrBadAllocCount}, codes(errs))
}

func TestValidateDuplicateQueueID(t *testing.T) {
	p := &Plan{
		Queues: []ir.QueueItems{
			testutil.Queue(3),
			testutil.Queue(3),
		},
	}

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateQueueID, errs[0].Code)
}

func TestValidateUnknownAllocRef(t *testing.T) {
	p := &Plan{
		Allocs: []ir.Alloc{testutil.Alloc("a", ir.Float32, 1)},
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.CopyD2D("a", "ghost", 8)),
		},
	}

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownAllocRef, errs[0].Code)
	assert.Contains(t, errs[0].Message, "ghost")
}

func TestValidateMissingEmit(t *testing.T) {
	p := &Plan{
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.Wait("ev_x", 9)),
		},
	}

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingEmit, errs[0].Code)
	assert.Contains(t, errs[0].Message, "corr")
}

func TestValidateEmitOnAnotherQueueSatisfiesWait(t *testing.T) {
	p := &Plan{
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.Wait("ev_x", 9)),
			testutil.Queue(1, testutil.Emit("ev_x", 9)),
		},
	}

	assert.Empty(t, Validate(p))
}

func TestValidateDuplicateEmit(t *testing.T) {
	p := &Plan{
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.Emit("ev_x", 1)),
			testutil.Queue(1, testutil.Emit("ev_x", 2)),
		},
	}

	errs := Validate(p)
	require.NotEmpty(t, errs)
	assert.Contains(t, codes(errs), ErrDuplicateEmit)
}

func TestValidateCorrReuseAcrossEvents(t *testing.T) {
	p := &Plan{
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.Emit("ev_a", 1)),
			testutil.Queue(1, testutil.Emit("ev_b", 1)),
		},
	}

	errs := Validate(p)
	require.NotEmpty(t, errs)
	assert.Contains(t, codes(errs), ErrCorrReuse)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	p := &Plan{
		Allocs: []ir.Alloc{
			testutil.Alloc("a", ir.Float32, -1),
			testutil.Alloc("a", ir.Float32, 1),
		},
		Queues: []ir.QueueItems{
			testutil.Queue(0, testutil.Wait("ev_x", 9)),
		},
	}

	errs := Validate(p)
	// Bad count, duplicate id, missing emit: all reported in one pass.
	assert.GreaterOrEqual(t, len(errs), 3)
}
