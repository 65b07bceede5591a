package api

import (
	"net/http"

	"resumehq/refinery/pkg/api/middleware"
	"resumehq/refinery/pkg/api/types"
)

// StatusHandler handles read-only quota status requests. Checking
// status never consumes quota.
type StatusHandler struct {
	refinery Refinery
}

// NewStatusHandler creates a new quota status handler.
func NewStatusHandler(refinery Refinery) *StatusHandler {
	return &StatusHandler{refinery: refinery}
}

// ServeHTTP implements http.Handler for GET /v1/rate-limit.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identifier := middleware.GetIdentifier(r.Context())
	if identifier == "" {
		writeError(w, types.NewAuthenticationError("Missing caller identity.", types.CodeMissingCredentials))
		return
	}

	snapshot, err := h.refinery.Status(r.Context(), identifier)
	if err != nil {
		writeRefineError(w, err)
		return
	}

	setRateLimitHeaders(w, snapshot)
	writeJSON(w, http.StatusOK, &types.StatusResponse{
		RateLimit: types.NewRateLimitInfo(snapshot),
	})
}
