package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// AccessKeyHeader carries the relay access key. It is never forwarded upstream.
const AccessKeyHeader = "X-API-Key"

// AccessKeyMiddleware rejects requests without one of keys in X-API-Key.
// With no keys configured the relay stays open.
func AccessKeyMiddleware(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get(AccessKeyHeader)
			if apiKey == "" {
				slog.Warn("Authentication failed: missing access key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Access key required", nil)
				return
			}

			if !isValidAccessKey(apiKey, keys) {
				slog.Warn("Authentication failed: invalid access key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid access key", nil)
				return
			}

			r.Header.Del(AccessKeyHeader)
			next.ServeHTTP(w, r)
		})
	}
}

func isValidAccessKey(apiKey string, keys []string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}
