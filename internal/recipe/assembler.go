package recipe

import (
	"fmt"
	"log/slog"

	"github.com/kilnware/kiln/internal/codegen"
	"github.com/kilnware/kiln/internal/ir"
	"github.com/kilnware/kiln/internal/sequence"
)

// Required header preludes for the two compilation units. The executor's
// runtime ships these headers; their content fingerprints are part of the
// artifact cache key at compile time.
const (
	kernelPrelude = "#include <cstdint>\n#include \"kiln_device.h\"\n\n"
	hostPrelude   = "#include <cstdint>\n#include \"kiln_host.h\"\n\n"
)

// Assembler builds recipes. Each Build owns a fresh instantiator and
// clock, so independent compilations never share naming counters or
// sequence numbers.
type Assembler struct {
	tokens ir.TokenSource
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTokenSource overrides the build token source (tests use a fixed one).
func WithTokenSource(ts ir.TokenSource) Option {
	return func(a *Assembler) {
		a.tokens = ts
	}
}

// WithLogger sets the assembler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an Assembler with UUIDv7 build tokens by default.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		tokens: ir.UUIDv7Source{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build sequences the per-queue item lists and brackets the result with
// allocation, queue, and event lifecycle calls.
//
// InitCalls order: allocations, then queues, then events. DisposeCalls is
// the exact reverse category order: events, then queues, then free
// allocations. All calls share one monotonic sequence domain, so init
// seqs precede exec seqs precede dispose seqs.
//
// Surfaces sequencing deadlocks and invalid template signatures
// unchanged; neither is retried.
func (a *Assembler) Build(queues []ir.QueueItems, allocs []ir.Alloc) (*ir.Recipe, error) {
	clock := sequence.NewClock()
	inst := codegen.NewInstantiator()

	events := collectEvents(queues)

	// Acquisition: allocations, queues, events. Stamped before the exec
	// body so sequence numbers are monotonic across the three lists.
	init := make([]ir.Call, 0, len(allocs)+len(queues)+len(events))
	for _, al := range allocs {
		init = append(init, ir.Call{
			Seq:   clock.Next(),
			Kind:  ir.CallAllocBuffer,
			Alloc: al.ID,
			Bytes: al.ByteSize(),
		})
	}
	for _, q := range queues {
		init = append(init, ir.Call{
			Seq:   clock.Next(),
			Kind:  ir.CallCreateQueue,
			Queue: q.Queue,
		})
	}
	for _, ev := range events {
		init = append(init, ir.Call{
			Seq:          clock.Next(),
			Kind:         ir.CallCreateEvent,
			Event:        ev.id,
			Multiplicity: ev.multiplicity,
		})
	}

	seq := sequence.New(queues, inst, clock, a.logger)
	exec, err := seq.Run()
	if err != nil {
		return nil, fmt.Errorf("sequence exec calls: %w", err)
	}

	// Release in exact reverse category order.
	dispose := make([]ir.Call, 0, len(init))
	for i := len(events) - 1; i >= 0; i-- {
		dispose = append(dispose, ir.Call{
			Seq:   clock.Next(),
			Kind:  ir.CallDestroyEvent,
			Event: events[i].id,
		})
	}
	for i := len(queues) - 1; i >= 0; i-- {
		dispose = append(dispose, ir.Call{
			Seq:   clock.Next(),
			Kind:  ir.CallDestroyQueue,
			Queue: queues[i].Queue,
		})
	}
	for i := len(allocs) - 1; i >= 0; i-- {
		dispose = append(dispose, ir.Call{
			Seq:   clock.Next(),
			Kind:  ir.CallFreeBuffer,
			Alloc: allocs[i].ID,
		})
	}

	r := &ir.Recipe{
		Version:      ir.RecipeVersion,
		BuildToken:   a.tokens.Token(),
		KernelSource: kernelPrelude + inst.Source(ir.DomainKernel),
		HostSource:   hostPrelude + inst.Source(ir.DomainHost),
		InitCalls:    init,
		DisposeCalls: dispose,
		ExecCalls:    exec,
	}

	a.logger.Info("recipe assembled",
		"build_token", r.BuildToken,
		"queues", len(queues),
		"allocs", len(allocs),
		"events", len(events),
		"exec_calls", len(exec),
		"instantiations", inst.Count())

	return r, nil
}

// eventSpec is one distinct event with its wait multiplicity.
type eventSpec struct {
	id           ir.EventID
	multiplicity int
}

// collectEvents scans every queue for emitted events in first-appearance
// order (queues in input order, items in queue order) and counts the wait
// occurrences per event id. The multiplicity created for an event must
// match the number of waiters that will consume it.
func collectEvents(queues []ir.QueueItems) []eventSpec {
	waits := make(map[ir.EventID]int)
	for _, q := range queues {
		for _, it := range q.Items {
			if it.Kind == ir.ItemWait {
				waits[it.Event.Event]++
			}
		}
	}

	seen := make(map[ir.EventID]bool)
	var events []eventSpec
	for _, q := range queues {
		for _, it := range q.Items {
			if it.Kind != ir.ItemEmit || seen[it.Event.Event] {
				continue
			}
			seen[it.Event.Event] = true
			events = append(events, eventSpec{
				id:           it.Event.Event,
				multiplicity: waits[it.Event.Event],
			})
		}
	}
	return events
}
