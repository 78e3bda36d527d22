package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/graphvis3d/internal/apierr"
	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/logger"
)

// GraphHandler serves the graph of the current run.
type GraphHandler struct {
	runner LayoutRunner
	limits Limits
}

// NewGraphHandler creates a graph handler.
func NewGraphHandler(runner LayoutRunner, limits Limits) *GraphHandler {
	return &GraphHandler{runner: runner, limits: limits}
}

// GraphSummary acknowledges a load.
type GraphSummary struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Components int `json:"components"`
}

func summarize(g *graph.Graph) GraphSummary {
	return GraphSummary{Nodes: g.Size(), Edges: g.EdgeCount(), Components: g.ComponentCount()}
}

// GetGraph returns the node and edge sets of the current run.
// GET /api/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := h.runner.Graph()
	if g == nil {
		apierr.WriteErrorWithContext(w, r, apierr.GraphNotLoaded())
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to encode graph", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to encode graph"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// PutGraph replaces the current run with the uploaded graph.
// POST /api/graph
func (h *GraphHandler) PutGraph(w http.ResponseWriter, r *http.Request) {
	g := graph.New()
	if !decodeBody(w, r, g, false) {
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
	logger.InfoContext(r.Context(), "graph uploaded", "nodes", g.Size(), "edges", g.EdgeCount())
	writeJSON(w, r, http.StatusAccepted, summarize(g))
}

// GenerateRequest describes a random graph.
type GenerateRequest struct {
	Nodes         int  `json:"nodes"`
	Edges         int  `json:"edges"`
	Directionless bool `json:"directionless"`
}

// Generate replaces the current run with a random graph.
// POST /api/graph/generate
func (h *GraphHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req := GenerateRequest{Nodes: 100, Edges: 150}
	if !decodeBody(w, r, &req, true) {
		return
	}
	if req.Nodes < 1 {
		apierr.WriteErrorWithContext(w, r, apierr.GraphInvalidParams("nodes must be at least 1"))
		return
	}
	if req.Edges < 0 {
		apierr.WriteErrorWithContext(w, r, apierr.GraphInvalidParams("edges must not be negative"))
		return
	}
	if apiErr := h.limits.check(req.Nodes, req.Edges); apiErr != nil {
		apierr.WriteErrorWithContext(w, r, apiErr)
		return
	}

	opts := graph.GenerateOptions{Nodes: req.Nodes, Edges: req.Edges, Directionless: req.Directionless}
	if err := h.runner.Generate(r.Context(), opts); err != nil {
		runnerError(w, r, err)
		return
	}
	g := h.runner.Graph()
	if g == nil {
		apierr.WriteErrorWithContext(w, r, apierr.LayoutFailed(""))
		return
	}
	writeJSON(w, r, http.StatusAccepted, summarize(g))
}

// Reset stops the current run.
// POST /api/graph/reset
func (h *GraphHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Reset(r.Context()); err != nil {
		runnerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
