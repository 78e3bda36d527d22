package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/graphvis3d/internal/layout"
)

func TestLoadDefaults(t *testing.T) {
	// ensure defaults kick in with empty env
	for _, k := range []string{"ADDR", "LAYOUT_THETA", "LAYOUT_COOLING", "FRAME_RATE", "STORE_BACKEND", "GRAPH_DIR", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
	ResetForTest()
	defer ResetForTest()

	cfg := Load()
	if cfg.Addr != ":8000" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Layout != layout.DefaultParams() {
		t.Fatalf("expected default layout params, got %+v", cfg.Layout)
	}
	if cfg.StoreBackend != "file" || cfg.GraphDir != "./rsc/graphs" {
		t.Fatalf("unexpected store defaults: %q %q", cfg.StoreBackend, cfg.GraphDir)
	}
	if cfg.FrameRate != 30 {
		t.Fatalf("expected default frame rate 30, got %v", cfg.FrameRate)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
	if Load() != cfg {
		t.Fatal("expected Load to return the cached config")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LAYOUT_THETA", "0.5")
	t.Setenv("LAYOUT_COOLING", "0.8")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("STORE_TIMEOUT_MS", "750")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	ResetForTest()
	defer ResetForTest()

	cfg := Load()
	if cfg.Layout.Theta != 0.5 || cfg.Layout.Cooling != 0.8 {
		t.Fatalf("layout overrides not applied: %+v", cfg.Layout)
	}
	if cfg.Layout.Repulsion != layout.DefaultParams().Repulsion {
		t.Fatalf("untouched params should keep defaults, got %v", cfg.Layout.Repulsion)
	}
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.StoreBackend)
	}
	if cfg.StoreTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms store timeout, got %v", cfg.StoreTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %q", cfg.CORSAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	ResetForTest()
	defer ResetForTest()
	if err := Load().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg := *Load()
	cfg.StoreBackend = "postgres"
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected missing DATABASE_URL, got %v", err)
	}

	cfg = *Load()
	cfg.StoreBackend = "s3"
	cfg.Layout.Cooling = 2
	err := cfg.Validate()
	if !errors.Is(err, layout.ErrInvalidParams) {
		t.Errorf("expected invalid params, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "s3") {
		t.Errorf("expected unknown backend, got %v", err)
	}
}
