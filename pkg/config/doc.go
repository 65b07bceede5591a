// Package config provides configuration management for the refinement
// service.
//
// Configuration is loaded from a YAML file, with defaults applied for
// unset fields, REFINERY_* environment variable overrides on top, and
// validation of the final result:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// A process-wide singleton is available for components that cannot
// take a Config by injection:
//
//	config.Initialize("config.yaml")
//	cfg := config.GetConfig()
//
// The quota and cache parameters (limit, window, TTL) can be reloaded
// at runtime via the Watcher without restarting the process.
//
// All configuration is optional. A missing store section disables rate
// limiting (unmetered) and caching (always-miss) without crashing; the
// only hard requirement is an AI provider API key.
package config
