package models

import (
	"math"
	"sort"
	"time"
)

// DailyClose is one point of a provider's close-price series.
type DailyClose struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Closes extracts the close values in order.
func Closes(points []DailyClose) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// NewsItem is one headline attached to a snapshot.
type NewsItem struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	When     string `json:"when"`
	URL      string `json:"url"`
}

// CompanyProfile is the subset of an upstream company profile used for enrichment.
type CompanyProfile struct {
	Ticker     string  `json:"ticker"`
	Name       string  `json:"name"`
	LogoURL    string  `json:"logo"`
	WebURL     string  `json:"weburl"`
	MarketCapB float64 `json:"marketCapB"`
}

// Snapshot is the persisted per-ticker market bundle the game reads.
type Snapshot struct {
	Ticker        string     `json:"ticker,omitempty"`
	OneMonth      []float64  `json:"1m"`
	SixMonth      []float64  `json:"6m"`
	OneYear       []float64  `json:"1y"`
	LastClose     float64    `json:"lastClose"`
	OneYearReturn float64    `json:"oneYearReturn"`
	MarketCapB    float64    `json:"marketCapB,omitempty"`
	TopNews       []NewsItem `json:"topNews"`
	Insight       string     `json:"insight"`
	BuiltDateUTC  string     `json:"builtDateUTC"`
	BuiltAt       time.Time  `json:"builtAt"`
	Source        string     `json:"source"`
	SymbolUsed    string     `json:"symbolUsed,omitempty"`
}

// Window names accepted by Snapshot.Window.
const (
	WindowOneMonth = "1m"
	WindowSixMonth = "6m"
	WindowOneYear  = "1y"
)

// Window returns the named window, or nil for an unknown name.
func (s *Snapshot) Window(name string) []float64 {
	switch name {
	case WindowOneMonth:
		return s.OneMonth
	case WindowSixMonth:
		return s.SixMonth
	case WindowOneYear:
		return s.OneYear
	}
	return nil
}

// IsFreshOn reports whether the snapshot was built on the given UTC day key.
func (s *Snapshot) IsFreshOn(day string) bool {
	return s != nil && s.BuiltDateUTC != "" && s.BuiltDateUTC == day
}

// Normalize replaces nil slices with empty ones so JSON always carries arrays.
func (s *Snapshot) Normalize() {
	if s.OneMonth == nil {
		s.OneMonth = []float64{}
	}
	if s.SixMonth == nil {
		s.SixMonth = []float64{}
	}
	if s.OneYear == nil {
		s.OneYear = []float64{}
	}
	if s.TopNews == nil {
		s.TopNews = []NewsItem{}
	}
}

// BatchEvent reports per-ticker progress of a snapshot batch.
type BatchEvent struct {
	RunID     string    `json:"runId"`
	Type      string    `json:"type"` // "started", "ticker", "finished"
	Ticker    string    `json:"ticker,omitempty"`
	Outcome   string    `json:"outcome,omitempty"` // "built", "skipped", "failed"
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
	Total     int       `json:"total"`
	Done      int64     `json:"done"`
	Skipped   int64     `json:"skipped"`
	Failed    int64     `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanSeries drops points whose close is non-finite or not positive and
// returns the rest sorted oldest first. Duplicate dates keep the later row.
func CleanSeries(points []DailyClose) []DailyClose {
	out := make([]DailyClose, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	dedup := out[:0]
	for _, p := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Date.Equal(p.Date) {
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}
