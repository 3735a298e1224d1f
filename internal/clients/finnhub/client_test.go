package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeshavPeri/tickle/internal/models"
)

func TestGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "fh-key", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":                 "Apple Inc",
			"logo":                 "https://static.finnhub.io/logo/aapl.png",
			"weburl":               "https://www.apple.com/",
			"marketCapitalization": 2950000.0,
		})
	}))
	defer srv.Close()

	c := NewClient("fh-key", WithBaseURL(srv.URL))
	p, err := c.GetProfile(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, "Apple Inc", p.Name)
	assert.Equal(t, "https://www.apple.com/", p.WebURL)
	assert.InDelta(t, 2950.0, p.MarketCapB, 1e-9)
}

func TestGetProfile_EmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).GetProfile(context.Background(), "ZZZZ")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestGetProfile_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).GetProfile(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(png)
	}))
	defer srv.Close()

	c := NewClient("k")
	got, err := c.FetchImage(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, png, got)

	_, err = c.FetchImage(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}
