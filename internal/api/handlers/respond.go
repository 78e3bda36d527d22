package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/onnwee/graphvis3d/internal/apierr"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/logger"
)

// LayoutRunner is the part of engine.Runner the handlers use.
type LayoutRunner interface {
	Load(ctx context.Context, g *graph.Graph) error
	Generate(ctx context.Context, opts graph.GenerateOptions) error
	Reset(ctx context.Context) error
	Frame() *engine.Frame
	Graph() *graph.Graph
	Subscribe(buffer int) (<-chan *engine.Frame, func())
}

// Limits bounds graphs accepted by the API.
type Limits struct {
	MaxNodes int
	MaxEdges int
}

func (l Limits) check(nodes, edges int) *apierr.Error {
	if (l.MaxNodes > 0 && nodes > l.MaxNodes) || (l.MaxEdges > 0 && edges > l.MaxEdges) {
		return apierr.GraphTooLarge(nodes, edges, l.MaxNodes, l.MaxEdges)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnContext(r.Context(), "failed to encode response", "path", r.URL.Path, "error", err)
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("body", "Request body too large"))
		return false
	}
	apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
	return false
}

// runnerError maps a failed runner command to an API error.
func runnerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrRunnerStopped):
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Layout runner is shutting down"))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		apierr.WriteErrorWithContext(w, r, apierr.SystemTimeout(""))
	default:
		logger.ErrorContext(r.Context(), "layout command failed", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.LayoutFailed(""))
	}
}
