package types

import (
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
)

// RateLimitInfo is the quota snapshot attached to refinement responses.
// ResetAt is Unix seconds; a Limit of 0 means the request was admitted
// unmetered because the quota store could not answer.
type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
}

// NewRateLimitInfo converts an internal quota result to its wire shape.
func NewRateLimitInfo(res *ratelimit.Result) *RateLimitInfo {
	if res == nil {
		return nil
	}
	info := &RateLimitInfo{
		Limit:     res.Limit,
		Remaining: res.Remaining,
	}
	if !res.ResetAt.IsZero() {
		info.ResetAt = res.ResetAt.Unix()
	}
	return info
}

// RefineResponse is the single-bullet success response.
type RefineResponse struct {
	RefinedText string         `json:"refinedText"`
	FromCache   bool           `json:"fromCache"`
	Error       string         `json:"error,omitempty"`
	RateLimit   *RateLimitInfo `json:"rateLimit"`
}

// BatchRefineRequest is the batch request body. Bullets are refined as
// one quota decision and results come back in input order.
type BatchRefineRequest struct {
	Bullets []*refine.Request `json:"bullets"`
}

// BatchRefineResponse is the batch success response. Results align
// positionally with the request's bullets.
type BatchRefineResponse struct {
	Results   []*refine.ItemResult `json:"results"`
	RateLimit *RateLimitInfo       `json:"rateLimit"`
}

// StatusResponse is the read-only quota status response.
type StatusResponse struct {
	RateLimit *RateLimitInfo `json:"rateLimit"`
}
