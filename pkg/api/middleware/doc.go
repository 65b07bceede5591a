// Package middleware provides HTTP middleware for the refinement API.
//
// Middleware functions follow the standard wrapping pattern
// (func(http.Handler) http.Handler) and are composed outermost-first:
//
//	handler = RecoveryMiddleware(handler)
//	handler = LoggingMiddleware(handler)
//	handler = RequestIDMiddleware(handler)
//	handler = CORSMiddleware(corsConfig)(handler)
//	handler = AuthMiddleware(enabled, resolver)(handler)
//
// The auth middleware is the only one that rejects requests: everything
// reaching a handler carries a resolved rate-limit identifier in its
// context.
package middleware
