// Package models defines data structures for Tickle
package models

import "strings"

// Stock is an immutable universe entry. It deliberately carries no numeric
// market fields; those come from snapshots only.
type Stock struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Dividend bool   `json:"dividend"`
	Domain   string `json:"domain,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

// DividendText renders the dividend flag for categorical comparison.
func (s Stock) DividendText() string {
	if s.Dividend {
		return "Yes"
	}
	return "No"
}

// Label is the display string used by the guess dropdown, e.g. "AAPL — Apple Inc.".
func (s Stock) Label() string {
	return s.Ticker + " — " + s.Name
}

// NormalizeTicker upper-cases and strips every non A-Z character.
func NormalizeTicker(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidTicker reports whether s is a non-empty uppercase alphabetic symbol.
func IsValidTicker(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
