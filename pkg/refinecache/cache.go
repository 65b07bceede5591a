package refinecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// ByteStore is the store surface the cache needs. It is implemented by
// *kvstore.Store; tests substitute an in-memory fake.
type ByteStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config contains cache parameters.
type Config struct {
	// TTL is how long a cached refinement stays valid.
	TTL time.Duration
}

// Cache maps request fingerprints to previously computed refinements.
type Cache struct {
	store  ByteStore
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Cache over the given store.
func New(store ByteStore, cfg Config) *Cache {
	return &Cache{
		store:  store,
		ttl:    cfg.TTL,
		logger: slog.Default().With("component", "refinecache"),
	}
}

// fingerprintPayload is the canonical representation hashed into a
// fingerprint. Field order is fixed by declaration order, which makes
// the JSON encoding stable across processes.
type fingerprintPayload struct {
	Text         string   `json:"text"`
	Title        string   `json:"title"`
	Technologies []string `json:"technologies"`
}

// Fingerprint computes the deterministic cache key for a refinement
// request. The bullet text is trimmed and the technology list sorted
// before hashing, so semantically identical requests collide on
// purpose. Keys are scoped per identifier; no cross-user sharing.
func Fingerprint(identifier, bulletText, title string, technologies []string) string {
	sorted := make([]string, len(technologies))
	copy(sorted, technologies)
	sort.Strings(sorted)

	payload, _ := json.Marshal(fingerprintPayload{
		Text:         strings.TrimSpace(bulletText),
		Title:        title,
		Technologies: sorted,
	})

	sum := sha256.Sum256(payload)
	return "refine:" + identifier + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached refined text for a fingerprint. Any store
// error degrades to a miss, forcing a fresh AI call rather than
// blocking the request.
func (c *Cache) Get(ctx context.Context, fingerprint string) (string, bool) {
	val, ok, err := c.store.GetString(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "error", err)
		return "", false
	}
	return val, ok
}

// Set stores a refined text under its fingerprint with the configured
// TTL. Best effort: failures are logged and swallowed so they never
// break the caller's response.
func (c *Cache) Set(ctx context.Context, fingerprint, refinedText string) {
	if err := c.store.SetString(ctx, fingerprint, refinedText, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}
