package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"resumehq/refinery/pkg/api/middleware"
	"resumehq/refinery/pkg/api/types"
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
)

// Refinery is the orchestrator surface the handlers need. Implemented
// by *refine.Refiner.
type Refinery interface {
	RefineOne(ctx context.Context, identifier string, req *refine.Request) (*refine.ItemResult, *ratelimit.Result, error)
	RefineBatch(ctx context.Context, identifier string, reqs []*refine.Request) ([]*refine.ItemResult, *ratelimit.Result, error)
	Status(ctx context.Context, identifier string) (*ratelimit.Result, error)
}

// RefineHandler handles single-bullet refinement requests.
type RefineHandler struct {
	refinery Refinery
}

// NewRefineHandler creates a new single-bullet refinement handler.
func NewRefineHandler(refinery Refinery) *RefineHandler {
	return &RefineHandler{refinery: refinery}
}

// ServeHTTP implements http.Handler for POST /v1/refine.
func (h *RefineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identifier := middleware.GetIdentifier(r.Context())
	if identifier == "" {
		writeError(w, types.NewAuthenticationError("Missing caller identity.", types.CodeMissingCredentials))
		return
	}

	var req refine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewInvalidRequestError("Request body is not valid JSON.", types.CodeInvalidJSON))
		return
	}

	item, snapshot, err := h.refinery.RefineOne(r.Context(), identifier, &req)
	if err != nil {
		writeRefineError(w, err)
		return
	}

	setRateLimitHeaders(w, snapshot)
	writeJSON(w, http.StatusOK, &types.RefineResponse{
		RefinedText: item.RefinedText,
		FromCache:   item.FromCache,
		Error:       item.Err,
		RateLimit:   types.NewRateLimitInfo(snapshot),
	})
}

// BatchRefineHandler handles batch refinement requests.
//
// A denied batch fails as a whole: cache hits found while partitioning
// the batch are not returned on 429. Partial batch success is
// intentionally not offered.
type BatchRefineHandler struct {
	refinery Refinery
}

// NewBatchRefineHandler creates a new batch refinement handler.
func NewBatchRefineHandler(refinery Refinery) *BatchRefineHandler {
	return &BatchRefineHandler{refinery: refinery}
}

// ServeHTTP implements http.Handler for POST /v1/refine/batch.
func (h *BatchRefineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identifier := middleware.GetIdentifier(r.Context())
	if identifier == "" {
		writeError(w, types.NewAuthenticationError("Missing caller identity.", types.CodeMissingCredentials))
		return
	}

	var req types.BatchRefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewInvalidRequestError("Request body is not valid JSON.", types.CodeInvalidJSON))
		return
	}

	results, snapshot, err := h.refinery.RefineBatch(r.Context(), identifier, req.Bullets)
	if err != nil {
		writeRefineError(w, err)
		return
	}

	setRateLimitHeaders(w, snapshot)
	writeJSON(w, http.StatusOK, &types.BatchRefineResponse{
		Results:   results,
		RateLimit: types.NewRateLimitInfo(snapshot),
	})
}

// writeRefineError maps orchestrator errors to HTTP responses.
func writeRefineError(w http.ResponseWriter, err error) {
	var qerr *refine.QuotaError
	switch {
	case errors.As(err, &qerr):
		writeQuotaDenied(w, qerr)
	case errors.Is(err, refine.ErrEmptyBullet):
		writeError(w, types.NewInvalidRequestError("Bullet text must not be empty.", types.CodeEmptyBullet))
	case errors.Is(err, refine.ErrEmptyBatch):
		writeError(w, types.NewInvalidRequestError("Batch must contain at least one bullet.", types.CodeEmptyBatch))
	case errors.Is(err, refine.ErrBatchTooLarge):
		writeError(w, types.NewInvalidRequestError("Batch exceeds the maximum size.", types.CodeBatchTooLarge))
	case errors.Is(err, refine.ErrMissingIdentifier):
		writeError(w, types.NewAuthenticationError("Missing caller identity.", types.CodeMissingCredentials))
	default:
		writeError(w, types.NewServerError("An internal error occurred. Please try again later."))
	}
}
