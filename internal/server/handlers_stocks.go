package server

import (
	"net/http"
	"strings"

	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// stockOption is one entry of the guess picker. Label is the text the client
// submits back as a selection.
type stockOption struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Label  string `json:"label"`
}

func toOptions(stocks []models.Stock) []stockOption {
	out := make([]stockOption, 0, len(stocks))
	for _, st := range stocks {
		out = append(out, stockOption{
			Ticker: st.Ticker,
			Name:   st.Name,
			Label:  st.Ticker + " — " + st.Name,
		})
	}
	return out
}

// handleStocks handles GET /api/stocks
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, toOptions(s.app.Universe))
}

// handleSearch handles GET /api/search?q=&limit=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := QueryInt(r, "limit", defaultSearchLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	hits, err := s.app.Search.Search(q, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("q", q).Msg("Search failed")
		WriteError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	WriteJSON(w, http.StatusOK, toOptions(hits))
}
