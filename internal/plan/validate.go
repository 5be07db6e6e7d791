package plan

import (
	"fmt"

	"github.com/kilnware/kiln/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateAllocID = "E200" // allocation id declared twice
	ErrBadAllocCount    = "E201" // element count must be positive
	ErrDuplicateQueueID = "E202" // queue id declared twice
	ErrUnknownAllocRef  = "E203" // command references undeclared allocation
	ErrMissingEmit      = "E204" // wait correlation id has no producer emit
	ErrDuplicateEmit    = "E205" // event recorded more than once
	ErrCorrReuse        = "E206" // correlation id emitted from two events
)

// ValidationError represents a plan semantic error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the semantic rules a parsed plan must satisfy before it
// reaches the assembler. Returns all errors found (does not fail fast).
//
// The most important rule is E204: every wait correlation id must have an
// emit with the same id on some queue. The sequencer would detect the
// resulting deadlock anyway, but catching the missing edge here names the
// upstream bug directly instead of reporting a stuck schedule.
func Validate(p *Plan) []ValidationError {
	var errs []ValidationError

	allocs := make(map[ir.AllocID]bool)
	for i, al := range p.Allocs {
		if allocs[al.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("allocs[%d].id", i),
				Message: fmt.Sprintf("duplicate allocation id %q", al.ID),
				Code:    ErrDuplicateAllocID,
			})
		}
		allocs[al.ID] = true

		if al.Count <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("allocs[%d].count", i),
				Message: fmt.Sprintf("allocation %q has non-positive count %d", al.ID, al.Count),
				Code:    ErrBadAllocCount,
			})
		}
	}

	queueIDs := make(map[ir.QueueID]bool)
	emits := make(map[ir.CorrID]ir.EventID)
	eventEmits := make(map[ir.EventID]int)
	var waits []struct {
		field string
		ref   ir.EventRef
	}

	for qi, q := range p.Queues {
		if queueIDs[q.Queue] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("queues[%d].queue", qi),
				Message: fmt.Sprintf("duplicate queue id %d", q.Queue),
				Code:    ErrDuplicateQueueID,
			})
		}
		queueIDs[q.Queue] = true

		for ii, it := range q.Items {
			field := fmt.Sprintf("queues[%d].items[%d]", qi, ii)

			switch it.Kind {
			case ir.ItemPerform:
				for _, ref := range it.Perform.AllocRefs() {
					if !allocs[ref] {
						errs = append(errs, ValidationError{
							Field:   field,
							Message: fmt.Sprintf("command references undeclared allocation %q", ref),
							Code:    ErrUnknownAllocRef,
						})
					}
				}

			case ir.ItemEmit:
				eventEmits[it.Event.Event]++
				if eventEmits[it.Event.Event] > 1 {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("event %q recorded more than once", it.Event.Event),
						Code:    ErrDuplicateEmit,
					})
				}
				if prev, ok := emits[it.Event.Corr]; ok && prev != it.Event.Event {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("correlation id %d emitted from both %q and %q", it.Event.Corr, prev, it.Event.Event),
						Code:    ErrCorrReuse,
					})
				}
				emits[it.Event.Corr] = it.Event.Event

			case ir.ItemWait:
				waits = append(waits, struct {
					field string
					ref   ir.EventRef
				}{field, it.Event})
			}
		}
	}

	for _, w := range waits {
		if _, ok := emits[w.ref.Corr]; !ok {
			errs = append(errs, ValidationError{
				Field:   w.field,
				Message: fmt.Sprintf("wait on correlation id %d has no producer emit on any queue", w.ref.Corr),
				Code:    ErrMissingEmit,
			})
		}
	}

	return errs
}
