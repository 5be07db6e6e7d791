// Package ir defines the intermediate representation shared by every stage
// of the recipe compiler: memory allocations, command queues, synchronization
// events, per-queue lane items, abstract device commands, concrete device
// calls, and the finished Recipe.
//
// The IR is deliberately closed. Command and Call are tagged variants with a
// fixed kind set; translation sites switch exhaustively so that adding a kind
// breaks compilation everywhere it matters.
//
// Content-addressed identity (cache keys, golden traces) is computed with
// domain-separated SHA-256 over canonical JSON. See hash.go and canonical.go.
package ir
