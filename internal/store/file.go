package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/logger"
)

const fileBackend = "file"

// FileStore keeps one JSON document per graph in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store: empty graph directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string { return filepath.Join(s.dir, name) }

// Save writes g under name, replacing any previous graph atomically.
func (s *FileStore) Save(ctx context.Context, name string, g *graph.Graph) error {
	return observe(ctx, fileBackend, "save", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", name, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		tmp, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
		if err != nil {
			return fmt.Errorf("store: save %s: %w", name, err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("store: save %s: %w", name, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("store: save %s: %w", name, err)
		}
		if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
			return fmt.Errorf("store: save %s: %w", name, err)
		}
		logger.DebugContext(ctx, "graph saved", "backend", fileBackend, "name", name, "bytes", len(data))
		return nil
	})
}

// Load reads the graph stored under name.
func (s *FileStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	var g *graph.Graph
	err := observe(ctx, fileBackend, "load", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		data, err := os.ReadFile(s.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
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

type fileCounts struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

// List returns the stored graphs sorted by name. Unreadable files are
// skipped with a warning.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	err := observe(ctx, fileBackend, "list", "", func(ctx context.Context) error {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return fmt.Errorf("store: list: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || ValidateName(entry.Name()) != nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := s.stat(entry)
			if err != nil {
				logger.WarnContext(ctx, "skipping unreadable graph file", "name", entry.Name(), "error", err)
				continue
			}
			infos = append(infos, info)
		}
		return nil
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, err
}

func (s *FileStore) stat(entry fs.DirEntry) (Info, error) {
	fi, err := entry.Info()
	if err != nil {
		return Info{}, err
	}
	data, err := os.ReadFile(s.path(entry.Name()))
	if err != nil {
		return Info{}, err
	}
	var counts fileCounts
	if err := json.Unmarshal(data, &counts); err != nil {
		return Info{}, err
	}
	return Info{
		Name:      entry.Name(),
		Nodes:     len(counts.Nodes),
		Edges:     len(counts.Edges),
		UpdatedAt: fi.ModTime().UTC(),
	}, nil
}

// Delete removes the graph stored under name.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	return observe(ctx, fileBackend, "delete", name, func(ctx context.Context) error {
		if err := ValidateName(name); err != nil {
			return err
		}
		err := os.Remove(s.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("store: delete %s: %w", name, err)
		}
		return nil
	})
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
