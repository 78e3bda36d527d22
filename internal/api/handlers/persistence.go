package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/onnwee/graphvis3d/internal/apierr"
	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/middleware"
	"github.com/onnwee/graphvis3d/internal/store"
)

// StoreHandler saves the current graph and restores stored ones.
type StoreHandler struct {
	runner  LayoutRunner
	store   store.Store
	limits  Limits
	timeout time.Duration
}

// NewStoreHandler creates a persistence handler. timeout bounds each store
// call; zero means no extra bound.
func NewStoreHandler(runner LayoutRunner, s store.Store, limits Limits, timeout time.Duration) *StoreHandler {
	return &StoreHandler{runner: runner, store: s, limits: limits, timeout: timeout}
}

// NameRequest names a stored graph.
type NameRequest struct {
	Name string `json:"name"`
}

func (h *StoreHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *StoreHandler) storeError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		apierr.WriteErrorWithContext(w, r, apierr.StoreNotFound(name))
	case errors.Is(err, store.ErrInvalidName):
		apierr.WriteErrorWithContext(w, r, apierr.StoreInvalidName(name))
	case errors.Is(err, store.ErrUnavailable):
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Graph store is unavailable"))
	case errors.Is(err, context.DeadlineExceeded):
		apierr.WriteErrorWithContext(w, r, apierr.SystemTimeout("Graph store timed out"))
	default:
		logger.ErrorContext(r.Context(), "graph store failed", "name", name, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreFailed(""))
	}
}

func (h *StoreHandler) readName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req NameRequest
	if !decodeBody(w, r, &req, false) {
		return "", false
	}
	name := middleware.SanitizeString(req.Name, store.MaxNameLength+1)
	if name == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("name"))
		return "", false
	}
	return name, true
}

// Save stores the graph of the current run.
// POST /api/graph/save
func (h *StoreHandler) Save(w http.ResponseWriter, r *http.Request) {
	name, ok := h.readName(w, r)
	if !ok {
		return
	}
	g := h.runner.Graph()
	if g == nil {
		apierr.WriteErrorWithContext(w, r, apierr.GraphNotLoaded())
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.store.Save(ctx, name, g); err != nil {
		h.storeError(w, r, name, err)
		return
	}
	logger.InfoContext(r.Context(), "graph saved", "name", name, "nodes", g.Size(), "edges", g.EdgeCount())
	writeJSON(w, r, http.StatusCreated, store.Info{Name: name, Nodes: g.Size(), Edges: g.EdgeCount(), UpdatedAt: time.Now().UTC()})
}

// Load replaces the current run with a stored graph.
// POST /api/graph/load
func (h *StoreHandler) Load(w http.ResponseWriter, r *http.Request) {
	name, ok := h.readName(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	g, err := h.store.Load(ctx, name)
	cancel()
	if err != nil {
		h.storeError(w, r, name, err)
		return
	}
	if apiErr := h.limits.check(g.Size(), g.EdgeCount()); apiErr != nil {
		apierr.WriteErrorWithContext(w, r, apiErr)
		return
	}
	if err := h.runner.Load(r.Context(), g); err != nil {
		runnerError(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "graph restored", "name", name, "nodes", g.Size(), "edges", g.EdgeCount())
	writeJSON(w, r, http.StatusAccepted, summarize(g))
}

// List returns the stored graphs.
// GET /api/graphs
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	infos, err := h.store.List(ctx)
	if err != nil {
		h.storeError(w, r, "", err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"graphs": infos})
}

// Delete removes a stored graph.
// DELETE /api/graphs/{name}
func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx, cancel := h.context(r)
	defer cancel()
	if err := h.store.Delete(ctx, name); err != nil {
		h.storeError(w, r, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
