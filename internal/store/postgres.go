package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/onnwee/graphvis3d/internal/circuitbreaker"
	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/logger"
)

const postgresBackend = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	name        TEXT PRIMARY KEY,
	nodes       JSONB NOT NULL,
	edges       JSONB NOT NULL,
	node_count  INTEGER NOT NULL,
	edge_count  INTEGER NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	upsertGraph = `
INSERT INTO graphs (name, nodes, edges, node_count, edge_count, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (name) DO UPDATE SET
	nodes = EXCLUDED.nodes,
	edges = EXCLUDED.edges,
	node_count = EXCLUDED.node_count,
	edge_count = EXCLUDED.edge_count,
	updated_at = EXCLUDED.updated_at`
	selectGraph = `SELECT nodes, edges FROM graphs WHERE name = $1`
	listGraphs  = `SELECT name, node_count, edge_count, updated_at FROM graphs ORDER BY name`
	deleteGraph = `DELETE FROM graphs WHERE name = $1`
)

// splitGraph is the graph JSON document with its two lists kept raw so they
// can live in separate JSONB columns.
type splitGraph struct {
	Nodes json.RawMessage `json:"nodes"`
	Edges json.RawMessage `json:"edges"`
}

// PostgresStore keeps graphs in the graphs table. Queries go through a
// circuit breaker; while it is open every call fails with ErrUnavailable.
type PostgresStore struct {
	db      *sql.DB
	breaker *circuitbreaker.CircuitBreaker
}

// OpenPostgres connects to url and prepares the schema.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore uses an open database, creating the table if needed.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &PostgresStore{db: db, breaker: newBreaker()}, nil
}

func newBreaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:             postgresBackend,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
		},
	})
}

// guard runs one query through the breaker.
func (s *PostgresStore) guard(ctx context.Context, fn func(context.Context) error) error {
	err := s.breaker.Do(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return fmt.Errorf("%w: %s", ErrUnavailable, postgresBackend)
	}
	return err
}

// Save upserts g under name.
func (s *PostgresStore) Save(ctx context.Context, name string, g *graph.Graph) error {
	return observe(ctx, postgresBackend, "save", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", name, err)
		}
		var parts splitGraph
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("store: encode %s: %w", name, err)
		}
		err = s.guard(ctx, func(ctx context.Context) error {
			_, err := s.db.ExecContext(ctx, upsertGraph,
				name,
				pqtype.NullRawMessage{RawMessage: parts.Nodes, Valid: true},
				pqtype.NullRawMessage{RawMessage: parts.Edges, Valid: true},
				g.Size(),
				g.EdgeCount(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("store: save %s: %w", name, err)
		}
		logger.DebugContext(ctx, "graph saved", "backend", postgresBackend, "name", name, "nodes", g.Size())
		return nil
	})
}

// Load reads the graph stored under name.
func (s *PostgresStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	var g *graph.Graph
	err := observe(ctx, postgresBackend, "load", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		var nodes, edges pqtype.NullRawMessage
		err := s.guard(ctx, func(ctx context.Context) error {
			err := s.db.QueryRowContext(ctx, selectGraph, name).Scan(&nodes, &edges)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return err
		})
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			return err
		}
		if err != nil {
			return fmt.Errorf("store: load %s: %w", name, err)
		}
		parts := splitGraph{Nodes: orEmptyList(nodes), Edges: orEmptyList(edges)}
		data, err := json.Marshal(parts)
		if err != nil {
			return fmt.Errorf("store: load %s: %w", name, err)
		}
		loaded := graph.New()
		if err := json.Unmarshal(data, loaded); err != nil {
			return fmt.Errorf("store: load %s: %w", name, err)
		}
		g = loaded
		return nil
	})
	return g, err
}

func orEmptyList(m pqtype.NullRawMessage) json.RawMessage {
	if !m.Valid || len(m.RawMessage) == 0 {
		return json.RawMessage("[]")
	}
	return m.RawMessage
}

// List returns the stored graphs sorted by name.
func (s *PostgresStore) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	err := observe(ctx, postgresBackend, "list", "", func(ctx context.Context) error {
		return s.guard(ctx, func(ctx context.Context) error {
			rows, err := s.db.QueryContext(ctx, listGraphs)
			if err != nil {
				return fmt.Errorf("store: list: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				var info Info
				if err := rows.Scan(&info.Name, &info.Nodes, &info.Edges, &info.UpdatedAt); err != nil {
					return fmt.Errorf("store: list: %w", err)
				}
				info.UpdatedAt = info.UpdatedAt.UTC()
				infos = append(infos, info)
			}
			return rows.Err()
		})
	})
	return infos, err
}

// Delete removes the graph stored under name.
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	return observe(ctx, postgresBackend, "delete", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		var n int64
		err := s.guard(ctx, func(ctx context.Context) error {
			res, err := s.db.ExecContext(ctx, deleteGraph, name)
			if err != nil {
				return err
			}
			n, err = res.RowsAffected()
			return err
		})
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		if err != nil {
			return fmt.Errorf("store: delete %s: %w", name, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil
	})
}

// Close closes the database.
func (s *PostgresStore) Close() error { return s.db.Close() }
