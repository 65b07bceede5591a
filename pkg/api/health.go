package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether the AI provider is reachable.
// Implemented by providers.Provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Name() string
}

// StorePinger reports quota/cache store reachability. Implemented by
// *kvstore.Store. The store is optional; an unreachable store degrades
// to fail-open behavior and does not make the service unready.
type StorePinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests for liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler handles readiness check requests. The service is ready
// when the AI provider answers a health check; store state is reported
// for visibility but never gates readiness.
type ReadyHandler struct {
	provider HealthChecker
	store    StorePinger
}

// NewReadyHandler creates a new readiness check handler.
func NewReadyHandler(provider HealthChecker, store StorePinger) *ReadyHandler {
	return &ReadyHandler{provider: provider, store: store}
}

// ServeHTTP implements http.Handler for readiness checks.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK

	providerStatus := "ok"
	if err := h.provider.HealthCheck(ctx); err != nil {
		providerStatus = err.Error()
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	storeStatus := "disabled"
	if h.store != nil && h.store.Enabled() {
		storeStatus = "ok"
		if err := h.store.Ping(ctx); err != nil {
			// Degraded, not unready: limiter and cache fail open.
			storeStatus = "unreachable"
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"provider": map[string]interface{}{
			"name":   h.provider.Name(),
			"status": providerStatus,
		},
		"store": map[string]interface{}{
			"status": storeStatus,
		},
		"timestamp": time.Now().Unix(),
	})
}
