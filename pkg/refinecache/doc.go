// Package refinecache is a content-addressed cache for AI refinement
// results, built on the key-value store adapter.
//
// Requests are keyed by a deterministic fingerprint of their normalized
// content, so two requests that differ only in surrounding whitespace
// or technology-list order share one cache entry. Entries expire by
// TTL and are never mutated; recomputing an entry overwrites it with
// the same semantics.
//
// Caching is an optimization, never a correctness requirement: every
// store failure degrades to a miss on read and is swallowed (logged)
// on write, so a broken cache can slow refinement down but can never
// break it.
package refinecache
