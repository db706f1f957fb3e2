package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/forensiq/tribunal/internal/logger"
)

func TestRequestIDMinted(t *testing.T) {
	var ctxID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	respID := rec.Header().Get("X-Request-ID")
	if respID == "" {
		t.Fatal("expected X-Request-ID in response header")
	}
	if respID != ctxID {
		t.Errorf("context id %q differs from response header %q", ctxID, respID)
	}
	if _, err := uuid.Parse(respID); err != nil {
		t.Errorf("expected a UUID, got %q: %v", respID, err)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	const callerID = "caller-supplied-7"

	var ctxID string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", callerID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ctxID != callerID {
		t.Errorf("expected %q in context, got %q", callerID, ctxID)
	}
	if got := rec.Header().Get("X-Request-ID"); got != callerID {
		t.Errorf("expected %q echoed in response, got %q", callerID, got)
	}
}
