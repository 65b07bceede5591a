package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
ai:
  api_key: sk-test
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.RateLimit.Limit != DefaultRateLimitLimit {
		t.Errorf("rate limit = %d", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != DefaultRateLimitWindow {
		t.Errorf("window = %s", cfg.RateLimit.Window)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("cache ttl = %s", cfg.Cache.TTL)
	}
	if cfg.AI.Model != DefaultAIModel {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.AI.MaxBatchSize != DefaultAIMaxBatchSize {
		t.Errorf("max batch size = %d", cfg.AI.MaxBatchSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: ":9090"
store:
  url: redis://localhost:6379
  token: secret
rate_limit:
  limit: 5
  window: 1m
cache:
  ttl: 12h
ai:
  api_key: sk-test
  model: gpt-4o
auth:
  enabled: true
  keys:
    tok-a: user-a
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.ListenAddress != ":9090" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Store.URL != "redis://localhost:6379" || cfg.Store.Token != "secret" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Cache.TTL != 12*time.Hour {
		t.Errorf("cache ttl = %s", cfg.Cache.TTL)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Keys["tok-a"] != "user-a" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestLoadConfig_MissingStoreIsNotAnError(t *testing.T) {
	path := writeConfigFile(t, `
ai:
  api_key: sk-test
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.URL != "" {
		t.Errorf("store url = %q, want empty", cfg.Store.URL)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
rate_limit:
  limit: 5
ai:
  api_key: sk-file
`)

	t.Setenv("REFINERY_RATE_LIMIT_LIMIT", "50")
	t.Setenv("REFINERY_RATE_LIMIT_WINDOW", "30m")
	t.Setenv("REFINERY_AI_API_KEY", "sk-env")
	t.Setenv("REFINERY_STORE_URL", "redis://env-host:6379")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}

	if cfg.RateLimit.Limit != 50 {
		t.Errorf("limit = %d, want env override 50", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != 30*time.Minute {
		t.Errorf("window = %s", cfg.RateLimit.Window)
	}
	if cfg.AI.APIKey != "sk-env" {
		t.Errorf("api key = %q, want env override", cfg.AI.APIKey)
	}
	if cfg.Store.URL != "redis://env-host:6379" {
		t.Errorf("store url = %q", cfg.Store.URL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var cfg Config
		ApplyDefaults(&cfg)
		cfg.AI.APIKey = "sk-test"
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "negative limit",
			mutate:  func(cfg *Config) { cfg.RateLimit.Limit = -1 },
			wantErr: true,
		},
		{
			name:    "negative window",
			mutate:  func(cfg *Config) { cfg.RateLimit.Window = -time.Minute },
			wantErr: true,
		},
		{
			name:    "non-redis store url",
			mutate:  func(cfg *Config) { cfg.Store.URL = "http://example.com" },
			wantErr: true,
		},
		{
			name:    "auth enabled without keys",
			mutate:  func(cfg *Config) { cfg.Auth.Enabled = true },
			wantErr: true,
		},
		{
			name: "auth key with empty identifier",
			mutate: func(cfg *Config) {
				cfg.Auth.Enabled = true
				cfg.Auth.Keys = map[string]string{"tok": ""}
			},
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "temperature out of range",
			mutate:  func(cfg *Config) { cfg.AI.Temperature = 3.5 },
			wantErr: true,
		},
		{
			name: "usage enabled without retention",
			mutate: func(cfg *Config) {
				cfg.Usage.Enabled = true
				cfg.Usage.RetentionDays = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSingleton_SetAndGet(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	var cfg Config
	ApplyDefaults(&cfg)
	SetConfig(&cfg)

	if GetConfig() != &cfg {
		t.Error("GetConfig did not return the set instance")
	}
}
