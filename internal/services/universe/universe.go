// Package universe loads, validates, builds and searches the ticker universe.
package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KeshavPeri/tickle/internal/models"
)

// Load reads the universe JSON array from path and validates it.
func Load(path string) ([]models.Stock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		verr := &models.ValidationError{Source: "universe"}
		verr.Add("cannot read %s: %v", path, err)
		return nil, verr
	}

	var stocks []models.Stock
	if err := json.Unmarshal(data, &stocks); err != nil {
		verr := &models.ValidationError{Source: "universe"}
		verr.Add("cannot parse %s: %v", path, err)
		return nil, verr
	}

	if err := Validate(stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// Validate checks the universe is non-empty and every entry is usable.
func Validate(stocks []models.Stock) error {
	verr := &models.ValidationError{Source: "universe"}
	if len(stocks) == 0 {
		verr.Add("universe is empty")
		return verr
	}

	seen := make(map[string]int, len(stocks))
	for i, s := range stocks {
		if !models.IsValidTicker(s.Ticker) {
			verr.Add("entry %d: ticker %q must be uppercase letters only", i, s.Ticker)
			continue
		}
		if prev, dup := seen[s.Ticker]; dup {
			verr.Add("entry %d: duplicate ticker %s (first at %d)", i, s.Ticker, prev)
		}
		seen[s.Ticker] = i
		if s.Name == "" {
			verr.Add("%s: missing name", s.Ticker)
		}
		if s.Sector == "" {
			verr.Add("%s: missing sector", s.Ticker)
		}
		if s.Industry == "" {
			verr.Add("%s: missing industry", s.Ticker)
		}
	}
	return verr.OrNil()
}

// Save writes the universe as indented JSON, replacing path atomically.
func Save(path string, stocks []models.Stock) error {
	data, err := json.MarshalIndent(stocks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal universe: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Lookup indexes the universe by ticker.
type Lookup map[string]models.Stock

// NewLookup builds a Lookup.
func NewLookup(stocks []models.Stock) Lookup {
	l := make(Lookup, len(stocks))
	for _, s := range stocks {
		l[s.Ticker] = s
	}
	return l
}

// Find returns the stock for ticker.
func (l Lookup) Find(ticker string) (models.Stock, bool) {
	s, ok := l[ticker]
	return s, ok
}
