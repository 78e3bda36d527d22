package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/onnwee/graphvis3d/internal/apierr"
	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/logger"
)

// LayoutHandler reports on the running layout and serves its frames.
type LayoutHandler struct {
	runner LayoutRunner
	frames cache.Cache
	params layout.Params
}

// NewLayoutHandler creates a layout handler. Encoded frames are kept in
// frames.
func NewLayoutHandler(runner LayoutRunner, frames cache.Cache, params layout.Params) *LayoutHandler {
	return &LayoutHandler{runner: runner, frames: frames, params: params}
}

// ParamsView is the JSON form of layout.Params.
type ParamsView struct {
	Theta          float64 `json:"theta"`
	Cooling        float64 `json:"cooling"`
	HaltSpeed      float64 `json:"halt_speed"`
	SpringLength   float64 `json:"spring_length"`
	Stiffness      float64 `json:"stiffness"`
	Damping        float64 `json:"damping"`
	Repulsion      float64 `json:"repulsion"`
	MinDistance    float64 `json:"min_distance"`
	MergeTolerance float64 `json:"merge_tolerance"`
	Temperature    float64 `json:"temperature"`
	Mass           float64 `json:"mass"`
}

func viewParams(p layout.Params) ParamsView {
	return ParamsView{
		Theta:          p.Theta,
		Cooling:        p.Cooling,
		HaltSpeed:      p.HaltSpeed,
		SpringLength:   p.SpringLength,
		Stiffness:      p.Stiffness,
		Damping:        p.Damping,
		Repulsion:      p.Repulsion,
		MinDistance:    p.MinDistance,
		MergeTolerance: p.MergeTolerance,
		Temperature:    p.Temperature,
		Mass:           p.Mass,
	}
}

// LayoutStatus summarises the run without its positions.
type LayoutStatus struct {
	State  string     `json:"state"` // idle, running, done
	Run    uint64     `json:"run,omitempty"`
	Tick   int        `json:"tick"`
	Level  int        `json:"level"`
	Depth  int        `json:"depth"`
	Bodies int        `json:"bodies"`
	Halted int        `json:"halted"`
	Edges  int        `json:"edges"`
	Params ParamsView `json:"params"`
}

func layoutState(f *engine.Frame) string {
	switch {
	case f == nil:
		return "idle"
	case f.Done:
		return "done"
	default:
		return "running"
	}
}

// Status returns progress counters and the layout constants.
// GET /api/layout
func (h *LayoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	f := h.runner.Frame()
	status := LayoutStatus{State: layoutState(f), Params: viewParams(h.params)}
	if f != nil {
		status.Run = f.Run
		status.Tick = f.Tick
		status.Level = f.Level
		status.Depth = f.Depth
		status.Bodies = len(f.Nodes)
		status.Halted = f.Halted()
		status.Edges = len(f.Edges)
	}
	writeJSON(w, r, http.StatusOK, status)
}

func frameETag(f *engine.Frame) string {
	return `"` + strconv.FormatUint(f.Run, 10) + "-" + strconv.Itoa(f.Tick) + `"`
}

// encodeFrame returns the JSON encoding of f, shared through the frame cache.
func encodeFrame(c cache.Cache, f *engine.Frame) ([]byte, error) {
	data, _, err := cache.Fetch(c, cache.FrameKey(f.Run, f.Tick, ""), func() ([]byte, error) {
		return json.Marshal(f)
	})
	return data, err
}

// Frame returns the latest frame.
// GET /api/layout/frame
func (h *LayoutHandler) Frame(w http.ResponseWriter, r *http.Request) {
	f := h.runner.Frame()
	if f == nil {
		apierr.WriteErrorWithContext(w, r, apierr.LayoutNotStarted())
		return
	}

	etag := frameETag(f)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := encodeFrame(h.frames, f)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to encode frame", "run", f.Run, "tick", f.Tick, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to encode frame"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
