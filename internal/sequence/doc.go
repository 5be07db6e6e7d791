// Package sequence converts per-queue lane item lists into one total order
// of concrete device calls.
//
// The scheduler is a priority-driven greedy topological walk: at each step
// it scores every still-non-empty queue by its head item (continuity bonus
// for the previously chosen queue, a large penalty for pending emits, a
// large bonus for waits whose signal is already available) and pops the
// head of the highest-scoring eligible queue. Within a queue the original
// item order is preserved exactly.
//
// The walk is single-threaded and deterministic. It either runs to
// completion or fails fast with a DeadlockError describing the remaining
// queue contents; it never guesses a resolution. Total work is O(total
// item count): every step pops exactly one item.
package sequence
