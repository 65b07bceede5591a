package middleware

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// IdentifierKey stores the rate-limit identifier resolved by the
	// auth middleware.
	IdentifierKey contextKey = "identifier"
)

// GetIdentifier extracts the rate-limit identifier from the context.
// Returns empty string if not found.
func GetIdentifier(ctx context.Context) string {
	if id, ok := ctx.Value(IdentifierKey).(string); ok {
		return id
	}
	return ""
}
