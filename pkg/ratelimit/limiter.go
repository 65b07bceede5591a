package ratelimit

import (
	"context"
	"time"

	"resumehq/refinery/pkg/kvstore"
)

// WindowStore is the store surface the limiter needs. It is implemented
// by *kvstore.Store; tests substitute an in-memory fake.
type WindowStore interface {
	WindowConsume(ctx context.Context, key string, window time.Duration, limit, units int64, now time.Time) (bool, kvstore.WindowState, error)
	WindowPeek(ctx context.Context, key string, window time.Duration, now time.Time) (kvstore.WindowState, error)
}

// Config contains the limiter's window parameters.
type Config struct {
	// Limit is the maximum number of units within any rolling window.
	Limit int

	// Window is the rolling window duration.
	Window time.Duration

	// KeyPrefix namespaces window keys in the store.
	// Default: "rl:refine:"
	KeyPrefix string
}

// Result is the outcome of a limiter operation.
//
// ResetAt is the instant the oldest counted entry leaves the window (or
// now + window when the window is empty); it is a time.Time internally
// and converted to unix seconds only at the HTTP boundary.
type Result struct {
	// Allowed reports whether the requested units were admitted.
	Allowed bool

	// Limit is the configured maximum. The sentinel value 0 means
	// "unmetered": the store was unavailable or not configured and the
	// request was admitted without counting.
	Limit int

	// Remaining is the number of units left in the current window.
	Remaining int

	// ResetAt is when the window next frees capacity.
	ResetAt time.Time
}

// Unmetered is the fail-open result used when the store cannot answer:
// the request is admitted and Limit carries the 0 sentinel so callers
// and clients can tell metered and unmetered admissions apart.
func Unmetered() *Result {
	return &Result{Allowed: true, Limit: 0}
}

// Limiter answers whether an identifier may consume more quota right
// now, without callers needing to know about window mechanics.
type Limiter struct {
	store WindowStore
	cfg   Config
	now   func() time.Time
}

// New creates a Limiter over the given store.
func New(store WindowStore, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:refine:"
	}
	return &Limiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// TryConsume atomically attempts to consume units from the
// identifier's window. When denied, the window is unchanged and the
// result carries the current snapshot. A non-nil error means the store
// could not answer; no quota was recorded and the caller decides the
// failure policy (see Unmetered).
func (l *Limiter) TryConsume(ctx context.Context, identifier string, units int) (*Result, error) {
	now := l.now()

	allowed, state, err := l.store.WindowConsume(ctx, l.key(identifier), l.cfg.Window, int64(l.cfg.Limit), int64(units), now)
	if err != nil {
		return nil, err
	}

	return l.result(allowed, state, now), nil
}

// Peek returns the identifier's current quota snapshot without
// consuming anything and without ever denying. Errors follow the same
// contract as TryConsume.
func (l *Limiter) Peek(ctx context.Context, identifier string) (*Result, error) {
	now := l.now()

	state, err := l.store.WindowPeek(ctx, l.key(identifier), l.cfg.Window, now)
	if err != nil {
		return nil, err
	}

	return l.result(true, state, now), nil
}

// FullQuota is the generous read-only default shown when the store
// cannot answer a Peek: full remaining quota rather than a false alarm.
func (l *Limiter) FullQuota() *Result {
	return &Result{
		Allowed:   true,
		Limit:     l.cfg.Limit,
		Remaining: l.cfg.Limit,
		ResetAt:   l.now().Add(l.cfg.Window),
	}
}

func (l *Limiter) key(identifier string) string {
	return l.cfg.KeyPrefix + identifier
}

func (l *Limiter) result(allowed bool, state kvstore.WindowState, now time.Time) *Result {
	remaining := l.cfg.Limit - int(state.Count)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(l.cfg.Window)
	if !state.OldestAt.IsZero() {
		resetAt = state.OldestAt.Add(l.cfg.Window)
	}

	return &Result{
		Allowed:   allowed,
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
