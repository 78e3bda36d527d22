package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/graphvis3d/internal/logger"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, ok := r.Context().Value(logger.RequestIDKey).(string)
		if !ok || reqID == "" {
			t.Error("Request ID not found in context")
		}
		if reqID != w.Header().Get(RequestIDHeader) {
			t.Error("Request ID in context doesn't match response header")
		}
		seen = reqID
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/graph", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("generated request ID %q is not a UUID: %v", seen, err)
	}
}

func TestRequestIDMiddleware_UniquePerRequest(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		ids[w.Header().Get(RequestIDHeader)] = true
	}
	if len(ids) != 10 {
		t.Errorf("expected 10 distinct request IDs, got %d", len(ids))
	}
}

func TestRequestIDMiddleware_ExistingID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "plain id", incoming: "existing-request-id", keep: true},
		{name: "uuid", incoming: "0b7c0b4e-1d6c-4f5a-9d7e-2f1b5d3c9a10", keep: true},
		{name: "contains space", incoming: "bad id", keep: false},
		{name: "control character", incoming: "bad\x01id", keep: false},
		{name: "too long", incoming: strings.Repeat("a", maxRequestIDLength+1), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = r.Context().Value(logger.RequestIDKey).(string)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if tt.keep && got != tt.incoming {
				t.Errorf("expected request ID %q to be kept, got %q", tt.incoming, got)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("expected request ID %q to be replaced", tt.incoming)
			}
			if w.Header().Get(RequestIDHeader) != got {
				t.Errorf("response header %q does not match context %q", w.Header().Get(RequestIDHeader), got)
			}
		})
	}
}
