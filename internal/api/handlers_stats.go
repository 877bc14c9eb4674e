package api

import (
	"net/http"
)

func (s *Server) handleEmbedderStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "embedder stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.model,
		"stats": s.stats.Snapshot(),
	})
}
