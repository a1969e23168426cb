package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/soyeahso/minder/internal/version"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleStatus reports runtime counters. It honors the same token as the
// WebSocket endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":       version.Version,
		"commit":        version.Commit,
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
		"activeActors":  s.manager.ActiveActors(),
		"sessions":      s.manager.ActiveSessions(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
