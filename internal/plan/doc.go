// Package plan compiles CUE plan files into the IR the recipe assembler
// consumes: memory allocation descriptors plus per-queue execution-unit
// item lists.
//
// A plan is the output of the upstream graph-to-units lowering stage,
// written out declaratively. The compiler parses with the CUE SDK's Go
// API directly (not a CLI subprocess); Validate then checks the semantic
// rules parsing cannot express, most importantly that every wait
// correlation id has a producer emit on some queue.
package plan
