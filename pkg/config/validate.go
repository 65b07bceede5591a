package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid values. It returns an
// error describing the first problem found.
//
// A missing store URL is deliberately not an error: the service runs
// with an unmetered limiter and an always-miss cache.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if cfg.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("server.max_header_bytes must not be negative")
	}

	if cfg.Store.URL != "" {
		if !strings.HasPrefix(cfg.Store.URL, "redis://") && !strings.HasPrefix(cfg.Store.URL, "rediss://") {
			return fmt.Errorf("store.url must be a redis:// or rediss:// URL, got %q", cfg.Store.URL)
		}
	}

	if cfg.RateLimit.Limit < 1 {
		return fmt.Errorf("rate_limit.limit must be at least 1, got %d", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", cfg.RateLimit.Window)
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", cfg.Cache.TTL)
	}

	if cfg.AI.MaxBatchSize < 1 {
		return fmt.Errorf("ai.max_batch_size must be at least 1, got %d", cfg.AI.MaxBatchSize)
	}
	if cfg.AI.MaxTokens < 1 {
		return fmt.Errorf("ai.max_tokens must be at least 1, got %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got %g", cfg.AI.Temperature)
	}

	if cfg.Auth.Enabled && len(cfg.Auth.Keys) == 0 {
		return fmt.Errorf("auth.enabled requires at least one entry in auth.keys")
	}
	for token, identifier := range cfg.Auth.Keys {
		if token == "" {
			return fmt.Errorf("auth.keys contains an empty token")
		}
		if identifier == "" {
			return fmt.Errorf("auth.keys token %q maps to an empty identifier", redactToken(token))
		}
	}

	if cfg.Usage.Enabled {
		if cfg.Usage.Path == "" {
			return fmt.Errorf("usage.enabled requires usage.path")
		}
		if cfg.Usage.RetentionDays < 1 {
			return fmt.Errorf("usage.retention_days must be at least 1, got %d", cfg.Usage.RetentionDays)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	return nil
}

// redactToken keeps the first few characters of a token for error
// messages without leaking the credential.
func redactToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
