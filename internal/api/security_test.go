package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestPathTraversalProtection(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	for _, name := range []string{".env", "a%20b", "..passwd"} {
		rr := serve(router, "DELETE", "/api/graphs/"+name, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("name %q: status = %d", name, rr.Code)
		}
	}
	rr := serve(router, "POST", "/api/graph/load", `{"name":"../../etc/passwd"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("load traversal: status = %d", rr.Code)
	}
}

func TestHTTPMethodValidation(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	tests := []struct {
		method string
		path   string
	}{
		{"DELETE", "/api/graph"},
		{"PUT", "/api/layout"},
		{"GET", "/api/graph/reset"},
		{"POST", "/health"},
	}
	for _, tt := range tests {
		if rr := serve(router, tt.method, tt.path, "", nil); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tt.method, tt.path, rr.Code)
		}
	}
}

func TestResourceExhaustion(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	huge := `{"nodes":[` + strings.Repeat(`"node",`, 20000) + `"end"],"edges":[]}`
	rr := serve(router, "POST", "/api/graph", huge, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized body: status = %d", rr.Code)
	}

	rr = serve(router, "POST", "/api/graph/generate", `{"nodes":100000,"edges":10}`, nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized generation: status = %d", rr.Code)
	}
}

func TestContentTypeEnforced(t *testing.T) {
	router := NewRouter(newTestDeps(t))
	req := `{"nodes":3}`
	rr := serve(router, "POST", "/api/graph/generate", req, map[string]string{"Content-Type": "text/plain"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("text/plain body: status = %d", rr.Code)
	}
	if rr := serve(router, "POST", "/api/graph/generate", req, nil); rr.Code == http.StatusBadRequest {
		t.Errorf("json body rejected: %d", rr.Code)
	}
}
