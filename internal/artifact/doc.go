// Package artifact is the content-addressed disk cache for compiled
// binaries: device bytecode and host shared libraries.
//
// A cache key is the generated source text, the fingerprint of every
// header the source depends on, and the full ordered compiler argument
// list. Key equality is exact; there is no automatic invalidation beyond
// it. A cache hit is byte-identical in behavior to a fresh compile with
// the same key because content is reproducible per key, so concurrent
// writers need no coordination beyond last-write-wins.
//
// On-disk layout: a directory of (key-fingerprint .json file, artifact
// .bin file) pairs named by the key hash, plus a SQLite index used by the
// CLI cache surface. A corrupt or missing artifact is treated as a miss
// and recompiled, never propagated.
package artifact
