package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"resumehq/refinery/pkg/kvstore"
)

// fakeWindowStore is an in-memory WindowStore with the same semantics
// as the Lua-backed implementation, driven by the caller's clock.
type fakeWindowStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	err     error
}

func newFakeWindowStore() *fakeWindowStore {
	return &fakeWindowStore{entries: make(map[string][]time.Time)}
}

func (f *fakeWindowStore) WindowConsume(_ context.Context, key string, window time.Duration, limit, units int64, now time.Time) (bool, kvstore.WindowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, kvstore.WindowState{}, f.err
	}

	live := f.prune(key, window, now)
	if int64(len(live))+units > limit {
		return false, f.state(live), nil
	}

	for i := int64(0); i < units; i++ {
		live = append(live, now)
	}
	f.entries[key] = live
	return true, f.state(live), nil
}

func (f *fakeWindowStore) WindowPeek(_ context.Context, key string, window time.Duration, now time.Time) (kvstore.WindowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return kvstore.WindowState{}, f.err
	}

	return f.state(f.prune(key, window, now)), nil
}

func (f *fakeWindowStore) prune(key string, window time.Duration, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	var live []time.Time
	for _, ts := range f.entries[key] {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	f.entries[key] = live
	return live
}

func (f *fakeWindowStore) state(live []time.Time) kvstore.WindowState {
	state := kvstore.WindowState{Count: int64(len(live))}
	for _, ts := range live {
		if state.OldestAt.IsZero() || ts.Before(state.OldestAt) {
			state.OldestAt = ts
		}
	}
	return state
}

func newTestLimiter(store WindowStore, limit int, window time.Duration) (*Limiter, *time.Time) {
	l := New(store, Config{Limit: limit, Window: window})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestTryConsume_Monotonic(t *testing.T) {
	store := newFakeWindowStore()
	limiter, _ := newTestLimiter(store, 5, time.Minute)
	ctx := context.Background()

	for k := 1; k <= 5; k++ {
		res, err := limiter.TryConsume(ctx, "user-1", 1)
		if err != nil {
			t.Fatalf("TryConsume %d: unexpected error: %v", k, err)
		}
		if !res.Allowed {
			t.Fatalf("TryConsume %d: expected allowed", k)
		}
		if res.Remaining != 5-k {
			t.Errorf("TryConsume %d: remaining = %d, want %d", k, res.Remaining, 5-k)
		}
	}

	// Sixth call is denied and does not decrease remaining further.
	res, err := limiter.TryConsume(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Error("expected denial after limit exhausted")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}

	res, err = limiter.TryConsume(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("repeated denial changed state: allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestTryConsume_WindowSlides(t *testing.T) {
	store := newFakeWindowStore()
	limiter, now := newTestLimiter(store, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if res, _ := limiter.TryConsume(ctx, "user-1", 1); !res.Allowed {
			t.Fatalf("call %d unexpectedly denied", i+1)
		}
	}

	// Still inside the window.
	if res, _ := limiter.TryConsume(ctx, "user-1", 1); res.Allowed {
		t.Fatal("expected denial inside window")
	}

	// Slide past the first timestamps.
	*now = now.Add(61 * time.Second)
	res, err := limiter.TryConsume(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("expected admission after window slid past old entries")
	}
}

func TestTryConsume_BatchUnitsAtomic(t *testing.T) {
	store := newFakeWindowStore()
	limiter, _ := newTestLimiter(store, 5, time.Minute)
	ctx := context.Background()

	if res, _ := limiter.TryConsume(ctx, "user-1", 3); !res.Allowed {
		t.Fatal("expected 3 units to be admitted")
	}

	// 3 units requested with only 2 remaining: fully denied, nothing
	// partially admitted.
	res, err := limiter.TryConsume(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Error("expected whole-batch denial")
	}
	if res.Remaining != 2 {
		t.Errorf("remaining = %d, want 2 (denied batch must not consume)", res.Remaining)
	}

	if res, _ := limiter.TryConsume(ctx, "user-1", 2); !res.Allowed {
		t.Error("expected exact-fit batch to be admitted")
	}
}

func TestPeek_NeverConsumes(t *testing.T) {
	store := newFakeWindowStore()
	limiter, _ := newTestLimiter(store, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := limiter.Peek(ctx, "user-1")
		if err != nil {
			t.Fatalf("Peek: unexpected error: %v", err)
		}
		if res.Remaining != 3 {
			t.Fatalf("Peek changed remaining: got %d", res.Remaining)
		}
	}

	// Full quota still available afterwards.
	for i := 0; i < 3; i++ {
		if res, _ := limiter.TryConsume(ctx, "user-1", 1); !res.Allowed {
			t.Fatalf("TryConsume %d denied after peeks", i+1)
		}
	}
}

func TestPeek_EmptyWindowResetAt(t *testing.T) {
	store := newFakeWindowStore()
	limiter, now := newTestLimiter(store, 3, time.Minute)

	res, err := limiter.Peek(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := now.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
}

func TestTryConsume_ResetAtTracksOldestEntry(t *testing.T) {
	store := newFakeWindowStore()
	limiter, now := newTestLimiter(store, 5, time.Minute)
	ctx := context.Background()

	first := *now
	if _, err := limiter.TryConsume(ctx, "user-1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*now = now.Add(20 * time.Second)
	res, err := limiter.TryConsume(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := first.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want oldest entry + window = %v", res.ResetAt, want)
	}
}

func TestTryConsume_StoreErrorSurfaced(t *testing.T) {
	store := newFakeWindowStore()
	store.err = errors.New("connection refused")
	limiter, _ := newTestLimiter(store, 5, time.Minute)

	res, err := limiter.TryConsume(context.Background(), "user-1", 1)
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if res != nil {
		t.Error("expected nil result alongside error")
	}

	// The fail-open decision belongs to the caller.
	open := Unmetered()
	if !open.Allowed || open.Limit != 0 {
		t.Errorf("Unmetered() = %+v, want allowed with 0 limit sentinel", open)
	}
}

func TestIdentifiersIsolated(t *testing.T) {
	store := newFakeWindowStore()
	limiter, _ := newTestLimiter(store, 1, time.Minute)
	ctx := context.Background()

	if res, _ := limiter.TryConsume(ctx, "user-a", 1); !res.Allowed {
		t.Fatal("user-a first consume denied")
	}
	if res, _ := limiter.TryConsume(ctx, "user-a", 1); res.Allowed {
		t.Error("user-a should be exhausted")
	}
	if res, _ := limiter.TryConsume(ctx, "user-b", 1); !res.Allowed {
		t.Error("user-b must not share user-a's window")
	}
}
