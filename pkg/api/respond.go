package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"resumehq/refinery/pkg/api/types"
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
)

// setRateLimitHeaders sets the quota headers on a response. ResetAt is
// reported in Unix seconds.
func setRateLimitHeaders(w http.ResponseWriter, res *ratelimit.Result) {
	if res == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
	if !res.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes an error envelope using its own status code.
func writeError(w http.ResponseWriter, errResp *types.ErrorResponse) {
	writeJSON(w, errResp.Error.HTTPStatusCode(), errResp)
}

// writeQuotaDenied writes the 429 response for a quota denial: headers
// first (including Retry-After), then the error envelope.
func writeQuotaDenied(w http.ResponseWriter, qerr *refine.QuotaError) {
	setRateLimitHeaders(w, qerr.Result)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", qerr.RetryAfter(time.Now())))
	writeError(w, types.NewRateLimitError(
		"Refinement rate limit exceeded. Please retry later.",
	))
}
