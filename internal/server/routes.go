package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
)

// registerRoutes sets up all HTTP routes on the given mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.Handle("/metrics", s.app.Metrics.Handler())

	// Universe
	mux.HandleFunc("/api/stocks", s.handleStocks)
	mux.HandleFunc("/api/search", s.handleSearch)

	// Game
	mux.HandleFunc("/api/sessions", s.handleSessionCreate)
	mux.HandleFunc("/api/sessions/", s.routeSessions)

	// Batch progress
	mux.HandleFunc("/api/batch/ws", s.app.Hub.ServeWS)
}

// routeSessions dispatches /api/sessions/{id}[/action] requests.
func (s *Server) routeSessions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "Session ID required")
		return
	}

	switch action {
	case "":
		s.handleSession(w, r, id)
	case "guess":
		s.handleGuess(w, r, id)
	case "hint":
		s.handleHint(w, r, id)
	case "chart.png":
		s.handleChart(w, r, id)
	case "logo":
		s.handleLogo(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Unknown session action: "+action)
	}
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.app.StartupTime).Round(time.Second).String(),
		"sessions": s.sessions.Len(),
		"storage":  s.app.Storage.Backend(),
	})
}

// handleVersion handles GET /api/version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, common.CurrentBuild())
}
