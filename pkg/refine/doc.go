// Package refine is the policy layer for AI bullet refinement. It
// composes the refinement cache, the sliding-window limiter, and the
// external AI provider into one decision procedure shared by the
// single-bullet and batch entry points.
//
// # Decision procedure
//
// For every request: check the cache first; a hit responds immediately
// with a read-only quota snapshot and never consumes quota. On a miss,
// consume quota atomically (one unit per miss, one decision per batch),
// then invoke the AI provider, write the result through to the cache,
// and respond with the updated snapshot.
//
// # Failure policy
//
// Store failures fail open: an unavailable limiter admits the request
// unmetered, an unavailable cache behaves as always-miss. A failed AI
// call surfaces per item with the original text as fallback; the quota
// unit already consumed is not refunded, because a failed generation
// still cost one attempt. The only hard failures a caller sees are
// quota denial and invalid input.
package refine
