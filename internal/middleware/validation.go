package middleware

import (
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/graphvis3d/internal/apierr"
)

// MaxRequestBodySize is the default request body limit (10MB).
const MaxRequestBodySize = 10 * 1024 * 1024

func hasBody(r *http.Request) bool {
	return r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch
}

// LimitBody caps request bodies of POST, PUT and PATCH requests at max bytes.
// max <= 0 uses MaxRequestBodySize.
func LimitBody(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = MaxRequestBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBody(r) {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects non-empty request bodies that are not declared as JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r) && r.ContentLength != 0 {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidFormat("Content-Type must be application/json"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SanitizeString trims whitespace, drops invalid UTF-8 and truncates to at
// most maxLength bytes without splitting a rune.
func SanitizeString(input string, maxLength int) string {
	input = strings.ToValidUTF8(strings.TrimSpace(input), "")
	if len(input) <= maxLength {
		return input
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return strings.TrimSpace(input[:cut])
}
