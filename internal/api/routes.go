package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/graphvis3d/internal/api/handlers"
	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/middleware"
	"github.com/onnwee/graphvis3d/internal/store"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Runner       handlers.LayoutRunner
	Hub          *handlers.FrameHub
	Store        store.Store
	Frames       cache.Cache
	Params       layout.Params
	Limits       handlers.Limits
	StoreTimeout time.Duration
	MaxBodyBytes int64
	RateLimiter  *middleware.RateLimiter // nil disables rate limiting
	CORSOrigins  []string
	EnablePprof  bool
}

// NewRouter registers every route. Middleware that must see unmatched
// requests, such as CORS preflights, is added by Handler.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/health", handlers.Health(d.Runner)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if d.Hub != nil {
		r.HandleFunc("/ws", d.Hub.HandleWebSocket).Methods(http.MethodGet)
	}
	if d.EnablePprof {
		r.PathPrefix("/debug/pprof/").Handler(handlers.Profiling())
	}

	apiRouter := r.PathPrefix("/api").Subrouter()
	if d.RateLimiter != nil {
		apiRouter.Use(d.RateLimiter.Limit)
	}
	apiRouter.Use(middleware.LimitBody(d.MaxBodyBytes), middleware.RequireJSON, middleware.Compress)

	graphs := handlers.NewGraphHandler(d.Runner, d.Limits)
	apiRouter.Handle("/graph", middleware.ETag(http.HandlerFunc(graphs.GetGraph))).Methods(http.MethodGet)
	apiRouter.HandleFunc("/graph", graphs.PutGraph).Methods(http.MethodPost)
	apiRouter.HandleFunc("/graph/generate", graphs.Generate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/graph/reset", graphs.Reset).Methods(http.MethodPost)

	if d.Store != nil {
		persist := handlers.NewStoreHandler(d.Runner, d.Store, d.Limits, d.StoreTimeout)
		apiRouter.HandleFunc("/graph/save", persist.Save).Methods(http.MethodPost)
		apiRouter.HandleFunc("/graph/load", persist.Load).Methods(http.MethodPost)
		apiRouter.HandleFunc("/graphs", persist.List).Methods(http.MethodGet)
		apiRouter.HandleFunc("/graphs/{name}", persist.Delete).Methods(http.MethodDelete)
	}

	frames := d.Frames
	if frames == nil {
		frames = cache.NewMockCache()
	}
	layoutHandler := handlers.NewLayoutHandler(d.Runner, frames, d.Params)
	apiRouter.HandleFunc("/layout", layoutHandler.Status).Methods(http.MethodGet)
	apiRouter.HandleFunc("/layout/frame", layoutHandler.Frame).Methods(http.MethodGet)

	cacheAdmin := handlers.NewCacheAdminHandler(frames)
	apiRouter.HandleFunc("/admin/cache/stats", cacheAdmin.GetCacheStats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/admin/cache/invalidate", cacheAdmin.InvalidateCache).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with request ids, panic recovery, security
// headers and CORS.
func Handler(d Deps) http.Handler {
	var h http.Handler = NewRouter(d)
	h = middleware.CORS(middleware.CORSFromOrigins(d.CORSOrigins))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	return middleware.RequestID(h)
}
