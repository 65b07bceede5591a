// Package ratelimit implements per-identifier sliding-window rate
// limiting on top of the key-value store adapter.
//
// A sliding window measures consumption over the trailing window
// duration ending now, so quota recovers continuously instead of
// resetting at fixed boundaries. Each consumed unit is one timestamped
// entry in the identifier's window; entries older than the window no
// longer count, whether or not they have been physically removed.
//
// # Atomicity
//
// TryConsume delegates the prune/count/record cycle to a single
// server-side script in the store, so two concurrent requests can never
// both observe "1 remaining" and both succeed. Peek is read-only and
// never records anything, which makes it safe to expose as a status
// endpoint that does not itself cost quota.
//
// # Failure policy
//
// The limiter returns store errors to the caller rather than deciding
// the availability/strictness trade-off itself. Callers that want the
// fail-open behavior apply it explicitly:
//
//	res, err := limiter.TryConsume(ctx, userID, 1)
//	if err != nil {
//	    res = ratelimit.Unmetered() // store down: admit, unmetered
//	}
package ratelimit
