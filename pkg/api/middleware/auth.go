package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"resumehq/refinery/pkg/api/types"
)

// IdentifierHeader is the header consulted for the caller identity when
// token auth is disabled (trusted-gateway deployments).
const IdentifierHeader = "X-User-ID"

// AuthConfig contains configuration for the auth middleware.
type AuthConfig struct {
	// Enabled controls whether bearer-token auth is enforced. When
	// disabled the identifier is taken from the X-User-ID header
	// verbatim, for deployments behind a gateway that already
	// authenticated the caller.
	Enabled bool

	// Keys maps bearer tokens to the rate-limit identifier each token
	// acts as.
	Keys map[string]string
}

// TokenResolver resolves bearer tokens to identifiers. Safe for
// concurrent use; tokens can be swapped at runtime on config reload.
type TokenResolver struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewTokenResolver creates a resolver over the given token table.
func NewTokenResolver(keys map[string]string) *TokenResolver {
	m := make(map[string]string, len(keys))
	for token, id := range keys {
		m[token] = id
	}
	return &TokenResolver{keys: m}
}

// Resolve returns the identifier for a token, or "" when unknown.
func (t *TokenResolver) Resolve(token string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.keys[token]
}

// Replace swaps the whole token table.
func (t *TokenResolver) Replace(keys map[string]string) {
	m := make(map[string]string, len(keys))
	for token, id := range keys {
		m[token] = id
	}
	t.mu.Lock()
	t.keys = m
	t.mu.Unlock()
}

// AuthMiddleware resolves the caller to a rate-limit identifier before
// any quota or cache interaction. Requests that cannot be resolved get
// 401; handlers downstream can rely on GetIdentifier returning a
// non-empty value.
//
// Example usage:
//
//	resolver := NewTokenResolver(cfg.Auth.Keys)
//	handler = AuthMiddleware(cfg.Auth.Enabled, resolver)(handler)
func AuthMiddleware(enabled bool, resolver *TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				identifier := strings.TrimSpace(r.Header.Get(IdentifierHeader))
				if identifier == "" {
					writeAuthError(w, "Missing "+IdentifierHeader+" header.", types.CodeMissingCredentials)
					return
				}
				next.ServeHTTP(w, withIdentifier(r, identifier))
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				writeAuthError(w, "Missing bearer token.", types.CodeMissingCredentials)
				return
			}

			identifier := resolver.Resolve(token)
			if identifier == "" {
				writeAuthError(w, "Invalid bearer token.", types.CodeInvalidCredentials)
				return
			}

			next.ServeHTTP(w, withIdentifier(r, identifier))
		})
	}
}

// extractBearerToken pulls the token from the Authorization header.
// Returns empty string when the header is absent or not a Bearer scheme.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func withIdentifier(r *http.Request, identifier string) *http.Request {
	ctx := context.WithValue(r.Context(), IdentifierKey, identifier)
	return r.WithContext(ctx)
}

func writeAuthError(w http.ResponseWriter, message, code string) {
	errResp := types.NewAuthenticationError(message, code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errResp)
}
