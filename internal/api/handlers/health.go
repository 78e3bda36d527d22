package handlers

import (
	"net/http"
)

// Health reports liveness and the layout state.
func Health(runner LayoutRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status": "ok",
			"layout": layoutState(runner.Frame()),
		})
	}
}
