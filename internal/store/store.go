// Package store persists graphs by name. Only node and edge sets are kept;
// layouts are recomputed on load.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/metrics"
	"github.com/onnwee/graphvis3d/internal/tracing"
)

var (
	// ErrNotFound is returned when no graph is stored under a name.
	ErrNotFound = errors.New("store: graph not found")
	// ErrUnavailable is returned while a backend is failing and calls are
	// being rejected without reaching it.
	ErrUnavailable = errors.New("store: backend unavailable")
	// ErrInvalidName is returned for names ValidateName rejects.
	ErrInvalidName = errors.New("store: invalid graph name")
)

// MaxNameLength bounds graph names.
const MaxNameLength = 64

// Info describes a stored graph.
type Info struct {
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store saves and restores graphs.
type Store interface {
	Save(ctx context.Context, name string, g *graph.Graph) error
	Load(ctx context.Context, name string) (*graph.Graph, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // "file" or "postgres"
	Dir         string
	DatabaseURL string
}

// Open returns the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, errors.New("store: postgres backend requires DATABASE_URL")
		}
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}

// ValidateName accepts 1 to MaxNameLength characters from [A-Za-z0-9._-]
// that do not start with a dot.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength || name[0] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// observe wraps one store operation in a span and records its metrics.
func observe(ctx context.Context, backend, op, name string, fn func(context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "store."+op)
	defer span.End()
	span.SetAttributes(attribute.String("store.backend", backend))
	if name != "" {
		span.SetAttributes(attribute.String("store.graph", name))
	}

	start := time.Now()
	err := fn(ctx)
	metrics.StoreOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidName) {
		metrics.StoreOperationErrors.WithLabelValues(backend, op).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	return err
}
