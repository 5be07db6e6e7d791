package sequence

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kilnware/kiln/internal/codegen"
	"github.com/kilnware/kiln/internal/ir"
)

// Priority weights. Waits with an available signal drain first, emits are
// deferred until nothing better is runnable, and the previously chosen
// queue gets a small continuity bonus to batch work within one queue.
// The weights are heuristic: the scheduler does not minimize the number of
// synchronization calls, it guarantees determinism and deadlock freedom on
// valid input.
const (
	continuityBonus = 1
	emitPenalty     = 100
	waitBonus       = 1000
)

// queueState tracks one queue's undrained items during the walk.
type queueState struct {
	id    ir.QueueID
	items []ir.Item
	unit  string // current execution unit, for error context
}

// head returns the queue's current head item. Caller checks emptiness.
func (q *queueState) head() ir.Item {
	return q.items[0]
}

// Sequencer linearizes per-queue item lists into concrete device calls.
// One Sequencer handles one walk; it is not reused.
type Sequencer struct {
	queues []queueState
	inst   *codegen.Instantiator
	clock  *Clock
	logger *slog.Logger

	// waiters is the declared signal capacity per correlation id: the
	// number of wait occurrences across all queues.
	waiters map[ir.CorrID]int

	// available is the unclaimed signal count per emitted correlation id.
	available map[ir.CorrID]int

	// consumed counts wait satisfactions per correlation id. Never exceeds
	// the declared capacity.
	consumed map[ir.CorrID]int

	last int // index of the queue chosen on the previous step, -1 initially
	out  []ir.Call
}

// New creates a Sequencer over the given per-queue item lists. The
// instantiator resolves kernel and host templates encountered during the
// walk; the clock stamps every emitted call.
func New(queues []ir.QueueItems, inst *codegen.Instantiator, clock *Clock, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}

	states := make([]queueState, len(queues))
	waiters := make(map[ir.CorrID]int)
	total := 0
	for i, q := range queues {
		states[i] = queueState{id: q.Queue, items: q.Items}
		total += len(q.Items)
		for _, it := range q.Items {
			if it.Kind == ir.ItemWait {
				waiters[it.Event.Corr]++
			}
		}
	}

	return &Sequencer{
		queues:    states,
		inst:      inst,
		clock:     clock,
		logger:    logger,
		waiters:   waiters,
		available: make(map[ir.CorrID]int),
		consumed:  make(map[ir.CorrID]int),
		last:      -1,
		out:       make([]ir.Call, 0, total),
	}
}

// Run drains every queue and returns the accumulated call list.
//
// The walk is bounded by the total item count: each step pops exactly one
// item, so the loop cannot run longer than the input is large. Returns a
// *SequenceError on deadlock or on a command outside the closed set.
func (s *Sequencer) Run() ([]ir.Call, error) {
	bound := 0
	for i := range s.queues {
		bound += len(s.queues[i].items)
	}

	for step := 0; ; step++ {
		if s.drained() {
			return s.out, nil
		}
		if step >= bound {
			return nil, &SequenceError{
				Code:    ErrCodeStepBound,
				Message: fmt.Sprintf("scheduler exceeded %d steps without draining", bound),
			}
		}

		chosen := s.pick()
		if chosen < 0 {
			return nil, s.deadlock()
		}

		if err := s.popAndTranslate(chosen); err != nil {
			return nil, err
		}
		s.last = chosen
	}
}

// drained reports whether every queue is empty.
func (s *Sequencer) drained() bool {
	for i := range s.queues {
		if len(s.queues[i].items) > 0 {
			return false
		}
	}
	return true
}

// pick scores every eligible queue and returns the index of the highest
// scoring one, or -1 if no queue is eligible. Ties break to the lowest
// queue index for determinism.
func (s *Sequencer) pick() int {
	best := -1
	bestScore := 0

	for i := range s.queues {
		q := &s.queues[i]
		if len(q.items) == 0 {
			continue
		}

		head := q.head()
		score := 0
		if i == s.last {
			score += continuityBonus
		}

		switch head.Kind {
		case ir.ItemPerform, ir.ItemUnitBegin, ir.ItemUnitEnd:
			// Always eligible at base priority.
		case ir.ItemEmit:
			score -= emitPenalty
		case ir.ItemWait:
			if s.available[head.Event.Corr] <= 0 {
				continue // not eligible until a matching emit fires
			}
			score += waitBonus
		default:
			continue
		}

		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	return best
}

// popAndTranslate removes the chosen queue's head item and appends its
// concrete calls to the output.
func (s *Sequencer) popAndTranslate(idx int) error {
	q := &s.queues[idx]
	item := q.items[0]
	q.items = q.items[1:]

	switch item.Kind {
	case ir.ItemUnitBegin:
		q.unit = item.Unit
		return nil

	case ir.ItemUnitEnd:
		q.unit = ""
		return nil

	case ir.ItemEmit:
		// Activate the correlation id with capacity equal to the number of
		// wait occurrences declared for it across all queues.
		s.available[item.Event.Corr] += s.waiters[item.Event.Corr]
		s.append(ir.Call{
			Kind:  ir.CallRecordEvent,
			Queue: q.id,
			Event: item.Event.Event,
			Corr:  item.Event.Corr,
		})
		s.logger.Debug("emit scheduled",
			"queue", int(q.id), "event", string(item.Event.Event),
			"corr", int64(item.Event.Corr), "capacity", s.waiters[item.Event.Corr])
		return nil

	case ir.ItemWait:
		s.available[item.Event.Corr]--
		s.consumed[item.Event.Corr]++
		s.append(ir.Call{
			Kind:  ir.CallWaitEvent,
			Queue: q.id,
			Event: item.Event.Event,
			Corr:  item.Event.Corr,
		})
		return nil

	case ir.ItemPerform:
		return s.translate(q, *item.Perform)

	default:
		return &SequenceError{
			Code:    ErrCodeUnknownCommand,
			Message: fmt.Sprintf("unknown item kind %s in unit %q", item.Kind, q.unit),
			Queue:   q.id,
		}
	}
}

// translate converts one abstract command into concrete calls on the
// given queue, instantiating templates as needed. The switch is
// exhaustive over the closed command set.
func (s *Sequencer) translate(q *queueState, cmd ir.Command) error {
	switch cmd.Kind {
	case ir.CmdKernel:
		wrapper, err := s.inst.Instantiate(cmd.Kernel.Template)
		if err != nil {
			return err
		}
		shape := cmd.Kernel.Shape
		s.append(ir.Call{
			Kind:    ir.CallLaunchKernel,
			Queue:   q.id,
			Wrapper: wrapper,
			Shape:   &shape,
			Args:    cmd.Kernel.Args,
		})
		return nil

	case ir.CmdHostCall:
		wrapper, err := s.inst.Instantiate(cmd.Host.Template)
		if err != nil {
			return err
		}
		s.append(ir.Call{
			Kind:    ir.CallHostFunc,
			Queue:   q.id,
			Wrapper: wrapper,
			Args:    cmd.Host.Args,
		})
		return nil

	case ir.CmdCopyD2D:
		s.append(ir.Call{
			Kind: ir.CallCopyD2D, Queue: q.id,
			Dst: cmd.Copy.Dst, Src: cmd.Copy.Src, Bytes: cmd.Copy.Bytes,
		})
		return nil

	case ir.CmdCopyH2D:
		s.append(ir.Call{
			Kind: ir.CallCopyH2D, Queue: q.id,
			Dst: cmd.Copy.Dst, Bytes: cmd.Copy.Bytes,
		})
		return nil

	case ir.CmdCopyD2H:
		s.append(ir.Call{
			Kind: ir.CallCopyD2H, Queue: q.id,
			Src: cmd.Copy.Src, Bytes: cmd.Copy.Bytes,
		})
		return nil

	case ir.CmdFill:
		s.append(ir.Call{
			Kind: ir.CallFill, Queue: q.id,
			Dst: cmd.Fill.Dst, Pattern: cmd.Fill.Pattern, Bytes: cmd.Fill.Bytes,
		})
		return nil

	case ir.CmdGemm:
		s.append(ir.Call{
			Kind: ir.CallGemm, Queue: q.id,
			Args: []ir.AllocID{cmd.Gemm.A, cmd.Gemm.B, cmd.Gemm.C},
			Dims: []int64{cmd.Gemm.M, cmd.Gemm.N, cmd.Gemm.K},
		})
		return nil

	default:
		return &SequenceError{
			Code:    ErrCodeUnknownCommand,
			Message: fmt.Sprintf("command kind %s in unit %q", cmd.Kind, q.unit),
			Queue:   q.id,
		}
	}
}

// append stamps the call with the next clock value and records it.
func (s *Sequencer) append(c ir.Call) {
	c.Seq = s.clock.Next()
	s.out = append(s.out, c)
}

// deadlock builds the fatal deadlock report: remaining per-queue items,
// correlation ids with unclaimed signal, and correlation ids blocking a
// head wait with no available signal.
func (s *Sequencer) deadlock() *SequenceError {
	remaining := make(map[ir.QueueID][]string)
	blockedSet := make(map[ir.CorrID]bool)

	for i := range s.queues {
		q := &s.queues[i]
		if len(q.items) == 0 {
			continue
		}
		rendered := make([]string, len(q.items))
		for j, it := range q.items {
			rendered[j] = it.String()
		}
		remaining[q.id] = rendered

		if head := q.head(); head.Kind == ir.ItemWait && s.available[head.Event.Corr] <= 0 {
			blockedSet[head.Event.Corr] = true
		}
	}

	var pending []ir.CorrID
	for corr, n := range s.available {
		if n > 0 {
			pending = append(pending, corr)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })

	blocked := make([]ir.CorrID, 0, len(blockedSet))
	for corr := range blockedSet {
		blocked = append(blocked, corr)
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })

	return &SequenceError{
		Code:      ErrCodeDeadlock,
		Message:   "no eligible queue: a wait is blocked on an emit that will never fire",
		Remaining: remaining,
		Pending:   pending,
		Blocked:   blocked,
	}
}

// Consumed returns the wait satisfactions recorded per correlation id.
// Exposed for conformance tests on signal capacity accounting.
func (s *Sequencer) Consumed() map[ir.CorrID]int {
	out := make(map[ir.CorrID]int, len(s.consumed))
	for k, v := range s.consumed {
		out[k] = v
	}
	return out
}
