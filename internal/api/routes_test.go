package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/api/handlers"
	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/middleware"
	"github.com/onnwee/graphvis3d/internal/store"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	e, err := engine.New(engine.Options{Params: layout.DefaultParams(), Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatal(err)
	}
	runner := engine.NewRunner(e, 0)
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	frames := cache.NewMockCache()
	hub := handlers.NewFrameHub(runner, frames)

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return Deps{
		Runner:       runner,
		Hub:          hub,
		Store:        s,
		Frames:       frames,
		Params:       layout.DefaultParams(),
		Limits:       handlers.Limits{MaxNodes: 500, MaxEdges: 1000},
		StoreTimeout: time.Second,
		MaxBodyBytes: 1 << 16,
		CORSOrigins:  []string{"http://localhost:5173"},
	}
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// TestEndpointsRegistered only checks routing; handler behaviour is tested
// in the handlers package.
func TestEndpointsRegistered(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/api/graph"},
		{"POST", "/api/graph"},
		{"POST", "/api/graph/generate"},
		{"POST", "/api/graph/reset"},
		{"POST", "/api/graph/save"},
		{"POST", "/api/graph/load"},
		{"GET", "/api/graphs"},
		{"DELETE", "/api/graphs/example"},
		{"GET", "/api/layout"},
		{"GET", "/api/layout/frame"},
		{"GET", "/api/admin/cache/stats"},
		{"POST", "/api/admin/cache/invalidate"},
	}
	for _, tt := range tests {
		rr := serve(router, tt.method, tt.path, "", nil)
		if rr.Code == http.StatusNotFound && rr.Header().Get("Content-Type") != "application/json" {
			t.Errorf("%s %s not registered", tt.method, tt.path)
		}
		if rr.Code == http.StatusMethodNotAllowed {
			t.Errorf("%s %s: method not allowed", tt.method, tt.path)
		}
	}
}

func TestProfilingRoutesAreOptIn(t *testing.T) {
	deps := newTestDeps(t)
	if rr := serve(NewRouter(deps), "GET", "/debug/pprof/", "", nil); rr.Code != http.StatusNotFound {
		t.Errorf("pprof served while disabled: %d", rr.Code)
	}
	deps.EnablePprof = true
	if rr := serve(NewRouter(deps), "GET", "/debug/pprof/", "", nil); rr.Code != http.StatusOK {
		t.Errorf("pprof index: %d", rr.Code)
	}
}

func TestGenerateThenFetch(t *testing.T) {
	h := Handler(newTestDeps(t))

	rr := serve(h, "POST", "/api/graph/generate", `{"nodes":30,"edges":40}`, nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, "GET", "/api/graph", "", map[string]string{"Accept-Encoding": "br"})
	if rr.Code != http.StatusOK {
		t.Fatalf("graph: %d", rr.Code)
	}
	if rr.Header().Get("Content-Encoding") != "br" {
		t.Errorf("expected brotli encoding, got %q", rr.Header().Get("Content-Encoding"))
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on /api/graph")
	}

	rr = serve(h, "GET", "/api/graph", "", map[string]string{"If-None-Match": etag})
	if rr.Code != http.StatusNotModified {
		t.Errorf("conditional graph request: %d", rr.Code)
	}

	rr = serve(h, "GET", "/api/layout/frame", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("frame: %d", rr.Code)
	}
}

func TestGraphEndpointCompression(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	for _, accept := range []string{"br", "gzip", ""} {
		rr := serve(router, "GET", "/api/graph", "", map[string]string{"Accept-Encoding": accept})
		if !strings.Contains(rr.Header().Get("Vary"), "Accept-Encoding") {
			t.Errorf("Accept-Encoding %q: missing Vary header", accept)
		}
	}
}

func TestHandlerMiddlewareChain(t *testing.T) {
	h := Handler(newTestDeps(t))

	rr := serve(h, "OPTIONS", "/api/graph", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("preflight missing allow origin")
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRateLimitedAPI(t *testing.T) {
	deps := newTestDeps(t)
	deps.RateLimiter = middleware.NewRateLimiter(1000, 1000, 1, 1)
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	serve(router, "GET", "/api/layout", "", nil)
	if rr := serve(router, "GET", "/api/layout", "", nil); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d", rr.Code)
	}
	if rr := serve(router, "GET", "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("health must not be rate limited: %d", rr.Code)
	}
}
