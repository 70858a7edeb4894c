// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, request timeouts, rate limiting, and API-key auth.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/retrieval-systems/tfidf-guesser/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request id to the context and response headers. An
// inbound X-Request-ID is honoured so ids propagate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
