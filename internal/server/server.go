package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KeshavPeri/tickle/internal/app"
	"github.com/KeshavPeri/tickle/internal/common"
)

// Server wraps the HTTP server, the application and the live game sessions.
type Server struct {
	app      *app.App
	server   *http.Server
	logger   *common.Logger
	sessions *SessionRegistry
	now      func() time.Time
}

// NewServer creates the HTTP API server and starts the idle-session reaper.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:      a,
		logger:   a.Logger,
		sessions: NewSessionRegistry(a.Config.Game.GetSessionTTL()),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger, a.Config.Server.CORSOrigins)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.sessions.StartReaper(reapInterval)
	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Sessions exposes the live session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and closes every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.sessions.Stop()
	return err
}
