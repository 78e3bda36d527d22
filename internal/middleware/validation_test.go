package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/graphvis3d/internal/apierr"
)

func TestLimitBody(t *testing.T) {
	handler := LimitBody(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "get passes", method: "GET", want: http.StatusOK},
		{name: "small post", method: "POST", body: `{"a":1}`, want: http.StatusOK},
		{name: "large post", method: "POST", body: strings.Repeat("x", 17), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/graph", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequireJSON(t *testing.T) {
	handler := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{name: "json", method: "POST", contentType: "application/json", body: `{}`, want: http.StatusOK},
		{name: "json with charset", method: "POST", contentType: "application/json; charset=utf-8", body: `{}`, want: http.StatusOK},
		{name: "text", method: "POST", contentType: "text/plain", body: `{}`, want: http.StatusBadRequest},
		{name: "missing", method: "POST", body: `{}`, want: http.StatusBadRequest},
		{name: "empty body", method: "POST", want: http.StatusOK},
		{name: "get", method: "GET", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/api/graph", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusBadRequest {
				var resp apierr.ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Error.Code != apierr.ErrValidationInvalidFormat {
					t.Errorf("unexpected code %s", resp.Error.Code)
				}
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input     string
		maxLength int
		expected  string
	}{
		{"  hello world  ", 20, "hello world"},
		{"verylongstringthatexceedslimit", 10, "verylongst"},
		{"normal text", 50, "normal text"},
		{"", 10, ""},
		{"   ", 10, ""},
		{"valid\xffutf8", 20, "validutf8"},
		{"héllo", 2, "h"},
		{"ab cd", 3, "ab"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.input, tt.maxLength); got != tt.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.expected)
		}
	}
}
