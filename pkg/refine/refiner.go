package refine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"resumehq/refinery/pkg/providers"
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refinecache"
)

// Cache is the cache surface the refiner needs. Implemented by
// *refinecache.Cache.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (string, bool)
	Set(ctx context.Context, fingerprint, refinedText string)
}

// Limiter is the quota surface the refiner needs. Implemented by
// *ratelimit.Limiter.
type Limiter interface {
	TryConsume(ctx context.Context, identifier string, units int) (*ratelimit.Result, error)
	Peek(ctx context.Context, identifier string) (*ratelimit.Result, error)
	FullQuota() *ratelimit.Result
}

// Config contains refiner policy parameters.
type Config struct {
	// MaxBatchSize caps the number of bullets per batch request.
	// Default: 10.
	MaxBatchSize int

	// Temperature for AI generation. Default: 0.4.
	Temperature float32

	// MaxTokens per AI call. Default: 1024.
	MaxTokens int

	// Metrics is optional; nil records nothing.
	Metrics *Metrics
}

// errRefinementFailed is the per-item error string surfaced when the
// AI call fails or returns unusable output.
const errRefinementFailed = "refinement failed, original text returned"

// Refiner composes cache lookups, limiter checks, and the external AI
// call into the single decision procedure both API entry points follow.
type Refiner struct {
	cache    Cache
	limiter  Limiter
	provider providers.Provider
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Refiner.
func New(cache Cache, limiter Limiter, provider providers.Provider, cfg Config) *Refiner {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Refiner{
		cache:    cache,
		limiter:  limiter,
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("component", "refine"),
		now:      time.Now,
	}
}

// RefineOne refines a single bullet for the given identifier.
//
// The returned snapshot is always usable for rate-limit response
// metadata. A *QuotaError is returned on denial; ErrEmptyBullet and
// ErrMissingIdentifier are returned for invalid input before any quota
// or cache interaction.
func (r *Refiner) RefineOne(ctx context.Context, identifier string, req *Request) (*ItemResult, *ratelimit.Result, error) {
	if identifier == "" {
		return nil, nil, ErrMissingIdentifier
	}
	text := strings.TrimSpace(req.BulletText)
	if text == "" {
		return nil, nil, ErrEmptyBullet
	}

	fp := fingerprint(identifier, text, req.Context)

	if cached, ok := r.cache.Get(ctx, fp); ok {
		r.cfg.Metrics.RecordCacheLookup(true)
		// A hit must not consume quota: snapshot via read-only peek.
		return &ItemResult{RefinedText: cached, FromCache: true}, r.peek(ctx, identifier), nil
	}
	r.cfg.Metrics.RecordCacheLookup(false)

	res := r.tryConsume(ctx, identifier, 1)
	r.cfg.Metrics.RecordQuotaCheck(res.Allowed)
	if !res.Allowed {
		return nil, res, &QuotaError{Result: res}
	}

	refined, err := r.generate(ctx, singleSystemPrompt, buildUserPrompt(text, req.Context), false)
	if err != nil {
		// Consumed quota is not refunded: a failed generation still
		// cost one attempt.
		r.logger.Warn("AI refinement failed", "identifier", identifier, "error", err)
		return &ItemResult{RefinedText: req.BulletText, Err: errRefinementFailed}, res, nil
	}

	refined = strings.TrimSpace(refined)
	if refined == "" {
		return &ItemResult{RefinedText: req.BulletText, Err: errRefinementFailed}, res, nil
	}

	r.cache.Set(ctx, fp, refined)
	return &ItemResult{RefinedText: refined}, res, nil
}

// batchItem is one cache-missed bullet awaiting AI refinement.
type batchItem struct {
	index int
	text  string
	ctx   *BulletContext
	fp    string
}

// RefineBatch refines an ordered batch of bullets under one quota
// decision sized to the number of cache misses.
//
// Result ordering exactly mirrors the input ordering; callers map
// results back onto UI elements by position. On denial the whole batch
// fails with a *QuotaError, including items that were cache hits;
// partial batch success is intentionally not offered.
func (r *Refiner) RefineBatch(ctx context.Context, identifier string, reqs []*Request) ([]*ItemResult, *ratelimit.Result, error) {
	if identifier == "" {
		return nil, nil, ErrMissingIdentifier
	}
	if len(reqs) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	if len(reqs) > r.cfg.MaxBatchSize {
		return nil, nil, ErrBatchTooLarge
	}

	results := make([]*ItemResult, len(reqs))
	var misses []batchItem

	for i, req := range reqs {
		text := strings.TrimSpace(req.BulletText)
		if text == "" {
			results[i] = &ItemResult{RefinedText: req.BulletText, Err: "empty bullet text"}
			continue
		}

		fp := fingerprint(identifier, text, req.Context)
		if cached, ok := r.cache.Get(ctx, fp); ok {
			r.cfg.Metrics.RecordCacheLookup(true)
			results[i] = &ItemResult{RefinedText: cached, FromCache: true}
			continue
		}
		r.cfg.Metrics.RecordCacheLookup(false)
		misses = append(misses, batchItem{index: i, text: text, ctx: req.Context, fp: fp})
	}

	// All hits (or invalid): nothing to generate, no quota consumed.
	if len(misses) == 0 {
		return results, r.peek(ctx, identifier), nil
	}

	// One atomic admission decision sized to the actual work required.
	res := r.tryConsume(ctx, identifier, len(misses))
	r.cfg.Metrics.RecordQuotaCheck(res.Allowed)
	if !res.Allowed {
		return nil, res, &QuotaError{Result: res}
	}

	r.refineMisses(ctx, misses, results)
	return results, res, nil
}

// refineMisses issues the single batched AI call and fills in results
// for the missed items, falling back to each item's original text on
// any malformed or failed response.
func (r *Refiner) refineMisses(ctx context.Context, misses []batchItem, results []*ItemResult) {
	raw, err := r.generate(ctx, batchSystemPrompt, buildBatchPrompt(misses), true)
	if err != nil {
		r.logger.Warn("batched AI refinement failed", "count", len(misses), "error", err)
		for _, item := range misses {
			results[item.index] = &ItemResult{RefinedText: item.text, Err: errRefinementFailed}
		}
		return
	}

	refined, ok := parseBatchReply(raw)
	if !ok {
		r.logger.Warn("batched AI response not parseable", "count", len(misses))
		for _, item := range misses {
			results[item.index] = &ItemResult{RefinedText: item.text, Err: errRefinementFailed}
		}
		return
	}

	for i, item := range misses {
		// Pad missing entries with the original text; extras beyond
		// len(misses) are ignored, preserving positional alignment.
		if i >= len(refined) || strings.TrimSpace(refined[i]) == "" {
			results[item.index] = &ItemResult{RefinedText: item.text, Err: errRefinementFailed}
			continue
		}

		text := strings.TrimSpace(refined[i])
		results[item.index] = &ItemResult{RefinedText: text}
		// Cached individually so future single or batch requests
		// benefit from a partial match.
		r.cache.Set(ctx, item.fp, text)
	}
}

// Status returns the identifier's read-only quota snapshot. It never
// consumes quota, so checking status is free.
func (r *Refiner) Status(ctx context.Context, identifier string) (*ratelimit.Result, error) {
	if identifier == "" {
		return nil, ErrMissingIdentifier
	}
	return r.peek(ctx, identifier), nil
}

// tryConsume applies the fail-open policy: an unavailable store admits
// the request unmetered rather than blocking refinement.
func (r *Refiner) tryConsume(ctx context.Context, identifier string, units int) *ratelimit.Result {
	res, err := r.limiter.TryConsume(ctx, identifier, units)
	if err != nil {
		r.logger.Warn("quota check unavailable, failing open", "identifier", identifier, "error", err)
		r.cfg.Metrics.RecordFailOpen("consume")
		return ratelimit.Unmetered()
	}
	return res
}

// peek applies the fail-open policy for reads: an unavailable store
// shows full quota rather than falsely alarming the user.
func (r *Refiner) peek(ctx context.Context, identifier string) *ratelimit.Result {
	res, err := r.limiter.Peek(ctx, identifier)
	if err != nil {
		r.cfg.Metrics.RecordFailOpen("peek")
		return r.limiter.FullQuota()
	}
	return res
}

func (r *Refiner) generate(ctx context.Context, system, user string, jsonResponse bool) (string, error) {
	start := r.now()
	resp, err := r.provider.Generate(ctx, &providers.GenerateRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		JSONResponse: jsonResponse,
	})
	r.cfg.Metrics.RecordAICall(err, time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func fingerprint(identifier, text string, bctx *BulletContext) string {
	title := ""
	var techs []string
	if bctx != nil {
		title = bctx.Title
		techs = bctx.Technologies
	}
	return refinecache.Fingerprint(identifier, text, title, techs)
}
