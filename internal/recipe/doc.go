// Package recipe assembles execution units and memory allocations into a
// finished Recipe: two generated source blobs and the init, dispose, and
// exec call lists an external executor replays verbatim.
//
// The assembler drives the multi-queue sequencer for the exec body and
// brackets it with resource acquisition and release. Init acquires in the
// order allocations, queues, events; dispose releases in the exact
// reverse category order so resources are torn down opposite to
// acquisition. Recipe-level compilation hands both source blobs to the
// artifact cache.
package recipe
