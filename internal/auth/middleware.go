package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader carries the internal API key.
	APIKeyHeader = "X-API-Key"

	requesterContextKey contextKey = "requester"
)

// RequesterFromContext extracts the authenticated requester id from context.
func RequesterFromContext(ctx context.Context) (string, bool) {
	requesterID, ok := ctx.Value(requesterContextKey).(string)
	return requesterID, ok
}

// RequireBearer is HTTP middleware that validates the Authorization bearer
// token and places the requester id in the request context.
func RequireBearer(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := manager.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), requesterContextKey, claims.RequesterID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey is HTTP middleware for the internal surface. Requests must
// carry the configured key in the X-API-Key header; an empty configured key
// disables the surface entirely.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				http.Error(w, "internal API disabled", http.StatusForbidden)
				return
			}

			provided := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
