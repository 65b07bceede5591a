// Package api provides the HTTP handlers for the refinement service.
//
// # Routes
//
//   - POST /v1/refine        refines one resume bullet
//   - POST /v1/refine/batch  refines up to the configured batch maximum
//   - GET  /v1/rate-limit    returns a read-only quota snapshot
//   - GET  /health           liveness probe
//   - GET  /ready            readiness probe
//
// All refinement responses carry X-RateLimit-Limit, X-RateLimit-Remaining,
// and X-RateLimit-Reset (Unix seconds) headers. Quota denials return 429
// with a Retry-After header and the standard error envelope.
//
// Handlers expect the auth middleware to have resolved a rate-limit
// identifier into the request context; requests without one get 401.
package api
