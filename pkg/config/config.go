package config

import "time"

// Config is the root configuration for the refinement service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server"`

	// Store contains the key-value store connection settings. Both
	// fields empty means "not configured": the limiter runs unmetered
	// and the cache always misses.
	Store StoreConfig `yaml:"store"`

	// RateLimit contains the sliding-window quota settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Cache contains the refinement cache settings.
	Cache CacheConfig `yaml:"cache"`

	// AI contains the AI provider settings.
	AI AIConfig `yaml:"ai"`

	// Auth contains the API authentication settings.
	Auth AuthConfig `yaml:"auth"`

	// Usage contains the optional local usage ledger settings.
	Usage UsageConfig `yaml:"usage"`

	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address to listen on (host:port).
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on
	// a keep-alive connection.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests
	// during shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains CORS settings.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins; ["*"] allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxAge is the preflight cache age in seconds.
	MaxAge int `yaml:"max_age"`
}

// StoreConfig contains key-value store connection settings.
type StoreConfig struct {
	// URL is the store endpoint (redis:// or rediss:// URL).
	URL string `yaml:"url"`

	// Token is the access token or password. Optional when the URL
	// carries credentials.
	Token string `yaml:"token"`
}

// RateLimitConfig contains sliding-window quota settings.
type RateLimitConfig struct {
	// Limit is the maximum refinements per identifier within any
	// rolling window.
	Limit int `yaml:"limit"`

	// Window is the rolling window duration.
	Window time.Duration `yaml:"window"`

	// KeyPrefix namespaces window keys in the store.
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig contains refinement cache settings.
type CacheConfig struct {
	// TTL is how long refined results stay cached.
	TTL time.Duration `yaml:"ttl"`
}

// AIConfig contains AI provider settings.
type AIConfig struct {
	// APIKey authenticates with the provider. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint. Optional.
	BaseURL string `yaml:"base_url"`

	// Model is the model to use for refinement.
	Model string `yaml:"model"`

	// Timeout is the per-call timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Temperature for generation.
	Temperature float32 `yaml:"temperature"`

	// MaxTokens per generation call.
	MaxTokens int `yaml:"max_tokens"`

	// MaxBatchSize caps bullets per batch request.
	MaxBatchSize int `yaml:"max_batch_size"`
}

// AuthConfig contains API authentication settings.
type AuthConfig struct {
	// Enabled controls bearer-token enforcement. When false the
	// caller identity is taken from the X-User-ID header, for
	// deployments behind an authenticating gateway.
	Enabled bool `yaml:"enabled"`

	// Keys maps bearer tokens to rate-limit identifiers.
	Keys map[string]string `yaml:"keys"`
}

// UsageConfig contains the optional local usage ledger settings.
type UsageConfig struct {
	// Enabled turns the SQLite usage ledger on. Off by default; the
	// process keeps no local state when disabled.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// RetentionDays is how long usage records are kept.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for the retention pruner.
	PruneSchedule string `yaml:"prune_schedule"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	Enabled bool `yaml:"enabled"`
}
