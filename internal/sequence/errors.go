package sequence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kilnware/kiln/internal/ir"
)

// SequenceErrorCode categorizes sequencing failures.
type SequenceErrorCode string

const (
	// ErrCodeDeadlock indicates no queue is eligible while at least one is
	// non-empty: a wait is blocked on an emit that can never legally fire
	// before it. This is an upstream dependency-edge bug, never retried.
	ErrCodeDeadlock SequenceErrorCode = "DEADLOCK"

	// ErrCodeUnknownCommand indicates a command kind outside the closed set.
	ErrCodeUnknownCommand SequenceErrorCode = "UNKNOWN_COMMAND"

	// ErrCodeStepBound indicates the scheduler exceeded its step bound.
	// Cannot happen on well-formed input: every step pops exactly one item.
	ErrCodeStepBound SequenceErrorCode = "STEP_BOUND_EXCEEDED"
)

// SequenceError is a structured sequencing failure. For deadlocks it
// carries the remaining per-queue items and the correlation-id state so
// the upstream lowering bug can be located without re-running.
type SequenceError struct {
	// Code identifies the error category.
	Code SequenceErrorCode

	// Message is a human-readable description.
	Message string

	// Queue identifies the affected queue where applicable.
	Queue ir.QueueID

	// Remaining holds the rendered undrained items per queue (deadlock only).
	Remaining map[ir.QueueID][]string

	// Pending lists correlation ids emitted with unclaimed signal capacity.
	Pending []ir.CorrID

	// Blocked lists correlation ids some queue is waiting on with no
	// available signal.
	Blocked []ir.CorrID
}

// Error implements the error interface.
func (e *SequenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	if len(e.Remaining) > 0 {
		queues := make([]ir.QueueID, 0, len(e.Remaining))
		for q := range e.Remaining {
			queues = append(queues, q)
		}
		sort.Slice(queues, func(i, j int) bool { return queues[i] < queues[j] })
		for _, q := range queues {
			fmt.Fprintf(&b, "\n  q%d: %s", q, strings.Join(e.Remaining[q], ", "))
		}
	}
	if len(e.Pending) > 0 {
		fmt.Fprintf(&b, "\n  pending emits: %v", e.Pending)
	}
	if len(e.Blocked) > 0 {
		fmt.Fprintf(&b, "\n  blocked waits: %v", e.Blocked)
	}
	return b.String()
}

// IsDeadlock returns true if the error is a sequencing deadlock.
// Uses errors.As to handle wrapped errors.
func IsDeadlock(err error) bool {
	var se *SequenceError
	if errors.As(err, &se) {
		return se.Code == ErrCodeDeadlock
	}
	return false
}
