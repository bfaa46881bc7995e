package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/getmockd/mockrelay/pkg/httputil"
)

// APIKeyHeader is the HTTP header for API key authentication.
const APIKeyHeader = "X-API-Key"

type apiKeyAuth struct {
	key []byte
}

// validate checks if the provided key is valid.
func (a *apiKeyAuth) validate(providedKey string) bool {
	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(providedKey), a.key) == 1
}

// middleware enforces API key authentication on everything but /health.
func (a *apiKeyAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(APIKeyHeader)
		if apiKey == "" {
			// Also check Authorization header (Bearer token format)
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing_api_key",
				"API key required. Provide via X-API-Key header or Authorization: Bearer <key>.")
			return
		}
		if !a.validate(apiKey) {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
