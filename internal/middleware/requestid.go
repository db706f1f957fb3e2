// Package middleware provides HTTP middleware for the Tribunal API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/forensiq/tribunal/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID accepts an X-Request-ID from the caller or mints a fresh
// UUID, stores it in the context for log correlation, and echoes it on
// the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
