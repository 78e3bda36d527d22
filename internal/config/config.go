package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/secrets"
	"github.com/onnwee/graphvis3d/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Server
	Addr            string
	ShutdownTimeout time.Duration
	// Layout physics; unset variables keep layout.DefaultParams values
	Layout          layout.Params
	LayoutMaxLevels int    // coarsening depth cap (0 = unlimited)
	LayoutSeed      uint64 // random seed; 0 picks one from the clock
	FrameRate       float64
	MaxGraphNodes   int // upper bound for uploaded or generated graphs
	MaxGraphEdges   int
	MaxRequestBytes int64 // body limit for uploads
	// Persistence
	StoreBackend string // "file" or "postgres"
	GraphDir     string
	DatabaseURL  string
	StoreTimeout time.Duration
	// Frame cache
	CacheMaxSizeMB  int64
	CacheMaxEntries int64
	CacheTTL        time.Duration
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	EnablePprof          bool     // expose /debug/pprof
	// Observability settings
	LogLevel          string // log level: debug, info, warn, error
	MetricsInterval   time.Duration
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		Addr:            utils.GetEnvAsString("ADDR", ":8000"),
		ShutdownTimeout: utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Layout:          loadLayoutParams(),
		LayoutMaxLevels: utils.GetEnvAsInt("LAYOUT_MAX_LEVELS", 0),
		LayoutSeed:      utils.GetEnvAsUint64("LAYOUT_SEED", 0),
		FrameRate:       utils.GetEnvAsFloat("FRAME_RATE", 30),
		MaxGraphNodes:   utils.GetEnvAsInt("MAX_GRAPH_NODES", 20000),
		MaxGraphEdges:   utils.GetEnvAsInt("MAX_GRAPH_EDGES", 100000),
		MaxRequestBytes: int64(utils.GetEnvAsInt("MAX_REQUEST_BYTES", 10<<20)),
		StoreBackend:    strings.ToLower(utils.GetEnvAsString("STORE_BACKEND", "file")),
		GraphDir:        utils.GetEnvAsString("GRAPH_DIR", "./rsc/graphs"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StoreTimeout:    utils.GetEnvAsDuration("STORE_TIMEOUT_MS", 5*time.Second),
		CacheMaxSizeMB:  int64(utils.GetEnvAsInt("FRAME_CACHE_MAX_MB", 64)),
		CacheMaxEntries: int64(utils.GetEnvAsInt("FRAME_CACHE_MAX_ENTRIES", 256)),
		CacheTTL:        utils.GetEnvAsDuration("FRAME_CACHE_TTL", time.Minute),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		EnablePprof:          utils.GetEnvAsBool("ENABLE_PPROF", false),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		MetricsInterval:   utils.GetEnvAsDuration("METRICS_INTERVAL", 15*time.Second),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	cached.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS",
		[]string{"http://localhost:5173", "http://localhost:3000"}, ",")

	return cached
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.StoreBackend {
	case "file":
		if c.GraphDir == "" {
			errs = append(errs, errors.New("GRAPH_DIR must not be empty"))
		}
	case "postgres":
		if err := secrets.RequireEnv("DATABASE_URL"); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.MaxGraphNodes < 1 || c.MaxGraphEdges < 0 {
		errs = append(errs, errors.New("MAX_GRAPH_NODES must be positive and MAX_GRAPH_EDGES non-negative"))
	}
	return errors.Join(errs...)
}

func loadLayoutParams() layout.Params {
	p := layout.DefaultParams()
	p.Theta = utils.GetEnvAsFloat("LAYOUT_THETA", p.Theta)
	p.Cooling = utils.GetEnvAsFloat("LAYOUT_COOLING", p.Cooling)
	p.HaltSpeed = utils.GetEnvAsFloat("LAYOUT_HALT_SPEED", p.HaltSpeed)
	p.SpringLength = utils.GetEnvAsFloat("LAYOUT_SPRING_LENGTH", p.SpringLength)
	p.Stiffness = utils.GetEnvAsFloat("LAYOUT_STIFFNESS", p.Stiffness)
	p.Damping = utils.GetEnvAsFloat("LAYOUT_DAMPING", p.Damping)
	p.Repulsion = utils.GetEnvAsFloat("LAYOUT_REPULSION", p.Repulsion)
	p.MinDistance = utils.GetEnvAsFloat("LAYOUT_MIN_DISTANCE", p.MinDistance)
	p.MergeTolerance = utils.GetEnvAsFloat("LAYOUT_MERGE_TOLERANCE", p.MergeTolerance)
	p.Temperature = utils.GetEnvAsFloat("LAYOUT_TEMPERATURE", p.Temperature)
	p.Mass = utils.GetEnvAsFloat("LAYOUT_MASS", p.Mass)
	return p
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// GetEnvBool reads a boolean environment variable with a default.
// Use this when you need to check a flag not present in the cached config.
func (c *Config) GetEnvBool(key string, def bool) bool {
	return utils.GetEnvAsBool(key, def)
}
