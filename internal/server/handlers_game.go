package server

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/game"
	"github.com/KeshavPeri/tickle/internal/metrics"
	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/KeshavPeri/tickle/internal/services/market"
)

var chartWindows = []string{models.WindowOneMonth, models.WindowSixMonth, models.WindowOneYear}

type sessionCreated struct {
	game.View
	Windows []string `json:"windows"`
}

type guessRequest struct {
	Selection string `json:"selection"`
}

// metricsListener counts guesses and finished sessions.
type metricsListener struct {
	game.NopListener
	m *metrics.Registry
}

func (l metricsListener) GuessEvaluated(r game.GuessResult) {
	result := "incorrect"
	if r.Evaluation.Correct {
		result = "correct"
	}
	l.m.Guesses.WithLabelValues(result).Inc()
}

func (l metricsListener) StateChanged(_, to game.State) {
	if to.Terminal() {
		l.m.Sessions.WithLabelValues(strings.ToLower(string(to))).Inc()
	}
}

// handleSessionCreate handles POST /api/sessions. The answer is today's
// ticker; its snapshot is built on demand when missing or built on an
// earlier day.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	now := s.now()

	answer, err := s.app.Daily.Today(ctx, s.app.Universe, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to resolve daily ticker")
		WriteErrorWithCode(w, http.StatusServiceUnavailable, "No stock available for today", "NO_DAILY_STOCK")
		return
	}

	snap, err := s.app.Storage.SnapshotStore().GetSnapshot(ctx, answer.Ticker)
	stale := err == nil && snap != nil && !snap.IsFreshOn(common.DayKey(now))
	if errors.Is(err, models.ErrNotFound) || stale {
		update, uerr := s.app.RunDaily(ctx, now, false)
		switch {
		case uerr == nil && update.Snapshot != nil:
			snap, err = update.Snapshot, nil
		case stale:
			s.logger.Warn().Err(uerr).Str("ticker", answer.Ticker).Str("built", snap.BuiltDateUTC).
				Msg("Daily refresh failed, serving previous snapshot")
		default:
			err = uerr
		}
	}
	if err != nil || snap == nil {
		s.logger.Error().Err(err).Str("ticker", answer.Ticker).Msg("Daily snapshot unavailable")
		WriteErrorWithCode(w, http.StatusServiceUnavailable, "Market data for today is not ready", "SNAPSHOT_UNAVAILABLE")
		return
	}

	cfg := s.app.Config.Game
	sess, err := game.NewSession(answer, snap, s.app.Lookup,
		game.WithSnapshots(s.app.Storage.SnapshotStore()),
		game.WithMaxAttempts(cfg.MaxAttempts),
		game.WithTickInterval(cfg.GetTickEvery()),
		game.WithListener(metricsListener{m: s.app.Metrics}),
		game.WithLogger(s.logger),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.sessions.Add(sess)
	s.app.Metrics.Sessions.WithLabelValues("created").Inc()

	WriteJSON(w, http.StatusCreated, sessionCreated{View: sess.Snapshot(), Windows: chartWindows})
}

func (s *Server) lookupSession(w http.ResponseWriter, id string) (*game.Session, bool) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND")
	}
	return sess, ok
}

// handleSession handles GET and DELETE /api/sessions/{id}
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		if !s.sessions.Remove(id) {
			WriteErrorWithCode(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sess, ok := s.lookupSession(w, id)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, sess.Snapshot())
}

// handleGuess handles POST /api/sessions/{id}/guess
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := s.lookupSession(w, id)
	if !ok {
		return
	}
	var req guessRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := sess.Guess(r.Context(), req.Selection)
	if err != nil {
		var rejected *models.GuessRejected
		switch {
		case errors.As(err, &rejected):
			WriteErrorWithCode(w, http.StatusUnprocessableEntity, rejected.Error(), string(rejected.Reason))
		case errors.Is(err, game.ErrGameOver):
			WriteErrorWithCode(w, http.StatusConflict, err.Error(), "GAME_OVER")
		case errors.Is(err, game.ErrBusy):
			WriteErrorWithCode(w, http.StatusConflict, err.Error(), "BUSY")
		default:
			s.logger.Error().Err(err).Str("session", id).Msg("Guess failed")
			WriteError(w, http.StatusInternalServerError, "Guess failed")
		}
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleHint handles POST /api/sessions/{id}/hint
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := s.lookupSession(w, id)
	if !ok {
		return
	}
	hint, err := sess.RevealHint()
	if errors.Is(err, game.ErrNoMoreHints) {
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "NO_MORE_HINTS")
		return
	}
	WriteJSON(w, http.StatusOK, hint)
}

// handleChart handles GET /api/sessions/{id}/chart.png?window=1m|6m|1y
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := s.lookupSession(w, id)
	if !ok {
		return
	}

	window := r.URL.Query().Get("window")
	if window == "" {
		window = models.WindowOneMonth
	}
	if !slices.Contains(chartWindows, window) {
		WriteErrorWithCode(w, http.StatusBadRequest, "Unknown window: "+window, "BAD_WINDOW")
		return
	}

	png, err := market.RenderWindowChart(sess.AnswerSnapshot().Window(window), QueryInt(r, "width", 0), QueryInt(r, "height", 0))
	if err != nil {
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "NO_DATA")
		return
	}
	WriteBytes(w, "image/png", png)
}

// handleLogo handles GET /api/sessions/{id}/logo. The logo is withheld until
// the first hint; the client blurs it per the hint stage.
func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := s.lookupSession(w, id)
	if !ok {
		return
	}
	if sess.CurrentHint().Stage < 1 && !sess.State().Terminal() {
		WriteErrorWithCode(w, http.StatusForbidden, "Reveal a hint first", "HINT_REQUIRED")
		return
	}

	data, err := s.app.Storage.LogoStore().GetLogo(r.Context(), sess.AnswerTicker())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, "No logo available", "NO_LOGO")
			return
		}
		s.logger.Error().Err(err).Str("session", id).Msg("Failed to read logo")
		WriteError(w, http.StatusInternalServerError, "Failed to read logo")
		return
	}
	WriteBytes(w, http.DetectContentType(data), data)
}
