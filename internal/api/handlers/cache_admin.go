package handlers

import (
	"net/http"

	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/logger"
)

// CacheAdminHandler exposes the frame cache.
type CacheAdminHandler struct {
	cache cache.Cache
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// InvalidateCache drops every encoded frame.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	logger.InfoContext(r.Context(), "frame cache invalidated")
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Frame cache invalidated",
	})
}

// GetCacheStats returns frame cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"keysAdded": stats.KeysAdded,
		"evictions": stats.Evictions,
		"sizeBytes": stats.Size,
		"items":     stats.Items,
	})
}
