package refine

import (
	"errors"
	"fmt"
	"time"

	"resumehq/refinery/pkg/ratelimit"
)

// Sentinel errors for invalid input. These are rejected before any
// quota or cache interaction.
var (
	// ErrEmptyBullet is returned for a request whose bullet text is
	// empty after trimming.
	ErrEmptyBullet = errors.New("refine: bullet text is empty")

	// ErrEmptyBatch is returned for a batch with no items.
	ErrEmptyBatch = errors.New("refine: batch contains no bullets")

	// ErrBatchTooLarge is returned when a batch exceeds the configured
	// maximum size.
	ErrBatchTooLarge = errors.New("refine: batch exceeds maximum size")

	// ErrMissingIdentifier is returned when no user identifier is
	// supplied.
	ErrMissingIdentifier = errors.New("refine: missing user identifier")
)

// BulletContext is optional context that steers a refinement.
type BulletContext struct {
	// Title is the job title the bullet belongs to.
	Title string `json:"title,omitempty"`

	// Technologies lists relevant technologies. Order is not
	// significant; it is normalized before fingerprinting.
	Technologies []string `json:"technologies,omitempty"`
}

// Request is one bullet refinement request. Transient; never persisted.
type Request struct {
	BulletText string         `json:"bulletText"`
	Context    *BulletContext `json:"context,omitempty"`
}

// ItemResult is the per-item outcome. RefinedText always carries usable
// text: the refined bullet on success, the original input as a no-op
// fallback when Err is set.
type ItemResult struct {
	RefinedText string `json:"refinedText"`
	FromCache   bool   `json:"fromCache"`
	Err         string `json:"error,omitempty"`
}

// QuotaError reports a rate-limit denial. It carries the quota snapshot
// so callers can surface limit, remaining, and reset metadata.
type QuotaError struct {
	Result *ratelimit.Result
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("refine: rate limit exceeded (limit %d, resets %s)",
		e.Result.Limit, e.Result.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns the whole seconds a caller should wait before
// retrying, never less than 1.
func (e *QuotaError) RetryAfter(now time.Time) int {
	secs := int((e.Result.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
