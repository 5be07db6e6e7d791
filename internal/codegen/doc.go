// Package codegen generates uniquely named, C-linkage wrapper functions
// for templated kernel and host functions.
//
// The Instantiator deduplicates by structural identity: instantiating the
// same (domain, name, type signature) twice returns the same wrapper name
// and does not regenerate source. Generated source is segregated by code
// domain so the recipe assembler can emit two separate compilation units.
package codegen
