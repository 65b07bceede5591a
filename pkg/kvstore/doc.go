// Package kvstore provides the shared Redis connection handle and the
// small set of typed operations the rate limiter and refinement cache
// are built on.
//
// The store is optional. When no endpoint is configured the adapter
// reports ErrNotConfigured from every operation instead of failing at
// startup; callers treat that as an explicit degraded mode (unmetered
// rate limiting, always-miss caching) rather than an error.
//
// # Construction
//
// The underlying client is constructed lazily on first use and memoized
// for the lifetime of the process, including the "not configured"
// outcome. Construction is never retried.
//
//	store := kvstore.New(kvstore.Config{
//	    URL:   "rediss://fly-refinery.upstash.io:6379",
//	    Token: os.Getenv("KV_REST_API_TOKEN"),
//	})
//	defer store.Close()
//
// # Atomicity
//
// WindowConsume executes a single server-side Lua script so that the
// prune/count/record cycle for a sliding window is atomic per key. This
// is what makes concurrent quota checks safe across many application
// instances; no client-side check-then-act is involved.
package kvstore
