package refine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"resumehq/refinery/pkg/providers"
	"resumehq/refinery/pkg/ratelimit"
)

// fakeCache is an in-memory Cache.
type fakeCache struct {
	data map[string]string
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, fp string) (string, bool) {
	v, ok := f.data[fp]
	return v, ok
}

func (f *fakeCache) Set(_ context.Context, fp, text string) {
	f.sets++
	f.data[fp] = text
}

// fakeLimiter enforces a simple counter-based quota.
type fakeLimiter struct {
	limit    int
	consumed int
	resetAt  time.Time
	err      error
	peeks    int
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, resetAt: time.Now().Add(time.Minute)}
}

func (f *fakeLimiter) TryConsume(_ context.Context, _ string, units int) (*ratelimit.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	allowed := f.consumed+units <= f.limit
	if allowed {
		f.consumed += units
	}
	return &ratelimit.Result{
		Allowed:   allowed,
		Limit:     f.limit,
		Remaining: f.limit - f.consumed,
		ResetAt:   f.resetAt,
	}, nil
}

func (f *fakeLimiter) Peek(_ context.Context, _ string) (*ratelimit.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.peeks++
	return &ratelimit.Result{
		Allowed:   true,
		Limit:     f.limit,
		Remaining: f.limit - f.consumed,
		ResetAt:   f.resetAt,
	}, nil
}

func (f *fakeLimiter) FullQuota() *ratelimit.Result {
	return &ratelimit.Result{Allowed: true, Limit: f.limit, Remaining: f.limit, ResetAt: f.resetAt}
}

// fakeProvider returns canned responses or errors and records calls.
type fakeProvider struct {
	response string
	err      error
	calls    int
	lastReq  *providers.GenerateRequest
}

func (f *fakeProvider) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &providers.GenerateResponse{Text: f.response}, nil
}

func (f *fakeProvider) HealthCheck(context.Context) error { return nil }
func (f *fakeProvider) Name() string                      { return "fake" }
func (f *fakeProvider) Close() error                      { return nil }

func newTestRefiner(limit int, provider *fakeProvider) (*Refiner, *fakeCache, *fakeLimiter) {
	cache := newFakeCache()
	limiter := newFakeLimiter(limit)
	return New(cache, limiter, provider, Config{}), cache, limiter
}

func TestRefineOne_MissConsumesAndCaches(t *testing.T) {
	provider := &fakeProvider{response: "Engineered billing pipeline handling 2M events/day"}
	refiner, cache, limiter := newTestRefiner(5, provider)

	req := &Request{BulletText: "worked on billing pipeline"}
	item, snap, err := refiner.RefineOne(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.FromCache {
		t.Error("first request must not be a cache hit")
	}
	if item.RefinedText != provider.response {
		t.Errorf("RefinedText = %q", item.RefinedText)
	}
	if snap.Remaining != 4 {
		t.Errorf("remaining = %d, want 4", snap.Remaining)
	}
	if limiter.consumed != 1 {
		t.Errorf("consumed = %d, want 1", limiter.consumed)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestRefineOne_HitBypassesQuota(t *testing.T) {
	provider := &fakeProvider{response: "refined"}
	refiner, _, limiter := newTestRefiner(5, provider)
	ctx := context.Background()

	req := &Request{BulletText: "worked on billing pipeline"}
	if _, _, err := refiner.RefineOne(ctx, "user-1", req); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	item, snap, err := refiner.RefineOne(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.FromCache {
		t.Error("expected cache hit")
	}
	if limiter.consumed != 1 {
		t.Errorf("cache hit consumed quota: consumed = %d", limiter.consumed)
	}
	if limiter.peeks == 0 {
		t.Error("cache hit must use read-only peek for its snapshot")
	}
	if snap.Remaining != 4 {
		t.Errorf("remaining = %d, want 4", snap.Remaining)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
}

func TestRefineOne_Denied(t *testing.T) {
	provider := &fakeProvider{response: "refined"}
	refiner, _, limiter := newTestRefiner(1, provider)
	ctx := context.Background()

	if _, _, err := refiner.RefineOne(ctx, "user-1", &Request{BulletText: "first bullet"}); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	_, snap, err := refiner.RefineOne(ctx, "user-1", &Request{BulletText: "second bullet"})
	var qerr *QuotaError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if snap.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", snap.Remaining)
	}
	if got := qerr.RetryAfter(limiter.resetAt.Add(-30 * time.Second)); got != 30 {
		t.Errorf("RetryAfter = %d, want 30", got)
	}
	if got := qerr.RetryAfter(limiter.resetAt.Add(time.Second)); got != 1 {
		t.Errorf("RetryAfter past reset = %d, want floor of 1", got)
	}
	if provider.calls != 1 {
		t.Errorf("denied request reached the provider: calls = %d", provider.calls)
	}
}

func TestRefineOne_AIFailureNoRefund(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream timeout")}
	refiner, cache, limiter := newTestRefiner(5, provider)

	req := &Request{BulletText: "worked on billing pipeline"}
	item, snap, err := refiner.RefineOne(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("AI failure must not be a hard error: %v", err)
	}
	if item.Err == "" {
		t.Error("expected per-item error flag")
	}
	if item.RefinedText != req.BulletText {
		t.Errorf("expected original text fallback, got %q", item.RefinedText)
	}
	// The consumed unit is not refunded.
	if snap.Remaining != 4 {
		t.Errorf("remaining = %d, want 4 (no refund)", snap.Remaining)
	}
	if limiter.consumed != 1 {
		t.Errorf("consumed = %d, want 1", limiter.consumed)
	}
	if cache.sets != 0 {
		t.Error("failed refinement must not be cached")
	}
}

func TestRefineOne_EmptyInput(t *testing.T) {
	provider := &fakeProvider{response: "refined"}
	refiner, _, limiter := newTestRefiner(5, provider)

	_, _, err := refiner.RefineOne(context.Background(), "user-1", &Request{BulletText: "   "})
	if !errors.Is(err, ErrEmptyBullet) {
		t.Fatalf("expected ErrEmptyBullet, got %v", err)
	}
	if limiter.consumed != 0 {
		t.Error("invalid input must not consume quota")
	}

	_, _, err = refiner.RefineOne(context.Background(), "", &Request{BulletText: "bullet"})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestRefineOne_FailsOpenWhenLimiterDown(t *testing.T) {
	provider := &fakeProvider{response: "refined"}
	refiner, _, limiter := newTestRefiner(5, provider)
	limiter.err = errors.New("connection refused")

	item, snap, err := refiner.RefineOne(context.Background(), "user-1", &Request{BulletText: "bullet"})
	if err != nil {
		t.Fatalf("store failure must fail open: %v", err)
	}
	if item.Err != "" {
		t.Errorf("unexpected item error: %s", item.Err)
	}
	if snap.Limit != 0 {
		t.Errorf("expected unmetered sentinel limit 0, got %d", snap.Limit)
	}
}

func TestRefineBatch_MixedHitsPreserveOrder(t *testing.T) {
	provider := &fakeProvider{response: `{"bullets": ["refined one", "refined three"]}`}
	refiner, cache, limiter := newTestRefiner(5, provider)
	ctx := context.Background()

	// Pre-cache bullet two.
	pre := &fakeProvider{response: "refined two"}
	primer := New(cache, newFakeLimiter(5), pre, Config{})
	if _, _, err := primer.RefineOne(ctx, "user-1", &Request{BulletText: "bullet two"}); err != nil {
		t.Fatalf("priming failed: %v", err)
	}

	reqs := []*Request{
		{BulletText: "bullet one"},
		{BulletText: "bullet two"},
		{BulletText: "bullet three"},
	}
	results, snap, err := refiner.RefineBatch(ctx, "user-1", reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		text      string
		fromCache bool
	}{
		{"refined one", false},
		{"refined two", true},
		{"refined three", false},
	}
	for i, w := range want {
		if results[i].RefinedText != w.text || results[i].FromCache != w.fromCache {
			t.Errorf("results[%d] = {%q, fromCache=%v}, want {%q, fromCache=%v}",
				i, results[i].RefinedText, results[i].FromCache, w.text, w.fromCache)
		}
	}

	// Exactly the two misses consumed quota.
	if limiter.consumed != 2 {
		t.Errorf("consumed = %d, want 2", limiter.consumed)
	}
	if snap.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", snap.Remaining)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want a single batched call", provider.calls)
	}
}

func TestRefineBatch_AllHitsConsumeNothing(t *testing.T) {
	provider := &fakeProvider{response: `{"bullets": ["refined one", "refined two"]}`}
	refiner, _, limiter := newTestRefiner(5, provider)
	ctx := context.Background()

	reqs := []*Request{{BulletText: "bullet one"}, {BulletText: "bullet two"}}
	if _, _, err := refiner.RefineBatch(ctx, "user-1", reqs); err != nil {
		t.Fatalf("priming batch failed: %v", err)
	}
	consumedBefore := limiter.consumed

	results, _, err := refiner.RefineBatch(ctx, "user-1", reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, res := range results {
		if !res.FromCache {
			t.Errorf("results[%d] expected cache hit", i)
		}
	}
	if limiter.consumed != consumedBefore {
		t.Errorf("all-hit batch changed consumption: %d -> %d", consumedBefore, limiter.consumed)
	}
}

func TestRefineBatch_AtomicDenial(t *testing.T) {
	provider := &fakeProvider{response: `{"bullets": ["a", "b", "c"]}`}
	refiner, _, limiter := newTestRefiner(2, provider)

	reqs := []*Request{
		{BulletText: "bullet one"},
		{BulletText: "bullet two"},
		{BulletText: "bullet three"},
	}
	results, snap, err := refiner.RefineBatch(context.Background(), "user-1", reqs)
	var qerr *QuotaError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if results != nil {
		t.Error("denied batch must not return partial results")
	}
	if limiter.consumed != 0 {
		t.Errorf("denied batch consumed %d units, want 0", limiter.consumed)
	}
	if snap.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", snap.Remaining)
	}
	if provider.calls != 0 {
		t.Error("denied batch reached the provider")
	}
}

func TestRefineBatch_CountMismatchPadsWithOriginal(t *testing.T) {
	provider := &fakeProvider{response: `{"bullets": ["refined one"]}`}
	refiner, _, _ := newTestRefiner(5, provider)

	reqs := []*Request{{BulletText: "bullet one"}, {BulletText: "bullet two"}}
	results, _, err := refiner.RefineBatch(context.Background(), "user-1", reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].RefinedText != "refined one" || results[0].Err != "" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].RefinedText != "bullet two" || results[1].Err == "" {
		t.Errorf("results[1] = %+v, want original text with error flag", results[1])
	}
}

func TestRefineBatch_UnparseableReplyFallsBack(t *testing.T) {
	provider := &fakeProvider{response: "Sure! Here are your bullets:"}
	refiner, cache, _ := newTestRefiner(5, provider)

	reqs := []*Request{{BulletText: "bullet one"}, {BulletText: "bullet two"}}
	results, _, err := refiner.RefineBatch(context.Background(), "user-1", reqs)
	if err != nil {
		t.Fatalf("unparseable reply must not be a hard failure: %v", err)
	}
	for i, res := range results {
		if res.Err == "" {
			t.Errorf("results[%d] missing error flag", i)
		}
		if res.RefinedText != reqs[i].BulletText {
			t.Errorf("results[%d] = %q, want original text", i, res.RefinedText)
		}
	}
	if cache.sets != 0 {
		t.Error("fallback results must not be cached")
	}
}

func TestRefineBatch_SizeLimits(t *testing.T) {
	provider := &fakeProvider{response: `{"bullets": []}`}
	refiner, _, limiter := newTestRefiner(100, provider)
	ctx := context.Background()

	if _, _, err := refiner.RefineBatch(ctx, "user-1", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}

	big := make([]*Request, 11)
	for i := range big {
		big[i] = &Request{BulletText: fmt.Sprintf("bullet %d", i)}
	}
	if _, _, err := refiner.RefineBatch(ctx, "user-1", big); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}
	if limiter.consumed != 0 {
		t.Error("invalid batches must not consume quota")
	}
}

func TestStatus_NeverConsumes(t *testing.T) {
	provider := &fakeProvider{response: "refined"}
	refiner, _, limiter := newTestRefiner(5, provider)

	for i := 0; i < 5; i++ {
		snap, err := refiner.Status(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.Remaining != 5 {
			t.Errorf("remaining = %d, want 5", snap.Remaining)
		}
	}
	if limiter.consumed != 0 {
		t.Error("status reads consumed quota")
	}
}

func TestParseBatchReply_CodeFence(t *testing.T) {
	raw := "```json\n{\"bullets\": [\"one\", \"two\"]}\n```"
	bullets, ok := parseBatchReply(raw)
	if !ok {
		t.Fatal("expected fenced JSON to parse")
	}
	if len(bullets) != 2 || bullets[0] != "one" {
		t.Errorf("bullets = %v", bullets)
	}
}
