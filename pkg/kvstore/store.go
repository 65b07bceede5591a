package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned by store operations when no endpoint was
// configured. It marks the deliberate "store absent" degraded mode and
// is distinct from transient connection errors.
var ErrNotConfigured = errors.New("kvstore: not configured")

// Config contains connection settings for the remote key-value store.
type Config struct {
	// URL is the store endpoint, e.g. "redis://host:6379" or
	// "rediss://host:6379" for TLS endpoints. Empty disables the store.
	URL string

	// Token is the access credential. For hosted stores that
	// authenticate with a single token it is used as the password.
	// Optional; ignored when URL already carries credentials.
	Token string
}

// Store is a lazily-constructed handle to the remote key-value store.
//
// The zero-config Store is valid and permanently reports ErrNotConfigured.
// Store is safe for concurrent use; the memoized client is immutable
// after first construction.
type Store struct {
	cfg    Config
	logger *slog.Logger

	once   sync.Once
	client *redis.Client
}

// New creates a Store from the given configuration. No connection is
// made until the first operation.
func New(cfg Config) *Store {
	return &Store{
		cfg:    cfg,
		logger: slog.Default().With("component", "kvstore"),
	}
}

// Client returns the underlying client, constructing it on first call.
// Returns nil when the store is not configured or the URL is invalid;
// that outcome is memoized and construction is never retried.
func (s *Store) Client() *redis.Client {
	s.once.Do(func() {
		if s.cfg.URL == "" {
			s.logger.Info("key-value store not configured, running in degraded mode")
			return
		}

		opts, err := redis.ParseURL(s.cfg.URL)
		if err != nil {
			s.logger.Error("invalid key-value store URL, running in degraded mode", "error", err)
			return
		}
		if s.cfg.Token != "" && opts.Password == "" {
			opts.Password = s.cfg.Token
		}

		s.client = redis.NewClient(opts)
	})

	return s.client
}

// Enabled reports whether the store is usable. It triggers lazy
// construction.
func (s *Store) Enabled() bool {
	return s.Client() != nil
}

// Close releases the client connection pool if one was constructed.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing key-value store client: %w", err)
	}
	return nil
}
