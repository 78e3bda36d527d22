package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/config"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:               "127.0.0.1:0",
		ShutdownTimeout:    2 * time.Second,
		Layout:             layout.DefaultParams(),
		MaxGraphNodes:      1000,
		MaxGraphEdges:      2000,
		MaxRequestBytes:    1 << 20,
		StoreTimeout:       time.Second,
		MetricsInterval:    50 * time.Millisecond,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	e, err := engine.New(engine.Options{Params: layout.DefaultParams(), Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatal(err)
	}
	return New(testConfig(), engine.NewRunner(e, 0), st, cache.NewMockCache())
}

func TestServeAndShutdown(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, fs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if body["status"] != "ok" {
		t.Errorf("unexpected health body %v", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHandlerWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/graphs", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected persistence routes to be absent, got %d", rr.Code)
	}
	if _, ok := s.probes()["graph_store"]; ok {
		t.Error("graph_store probe registered without a store")
	}
}

func TestProbes(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, fs)
	for name, probe := range s.probes() {
		if err := probe(context.Background()); err != nil {
			t.Errorf("probe %s: %v", name, err)
		}
	}
}
