package handlers

import (
	"context"
	"net/http"
	"net/http/pprof"

	"github.com/onnwee/graphvis3d/internal/logger"
)

// LogPprofAccess logs profiling endpoint access attempts for security monitoring.
func LogPprofAccess(ctx context.Context, path, remoteAddr string) {
	logger.InfoContext(ctx, "Profiling endpoint accessed",
		"endpoint", path,
		"remote_addr", remoteAddr,
		"type", "security_audit")
}

// Profiling serves the runtime profiles under /debug/pprof/. Every request is
// audit logged.
func Profiling() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LogPprofAccess(r.Context(), r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}
