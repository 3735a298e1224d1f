// Package game provides the guess evaluator and the per-player game session
package game

import (
	"math"
	"strings"

	"github.com/KeshavPeri/tickle/internal/models"
)

// LetterMark is the feedback for one ticker position.
type LetterMark string

const (
	LetterExact   LetterMark = "EXACT"
	LetterPresent LetterMark = "PRESENT"
	LetterAbsent  LetterMark = "ABSENT"
)

// Match is the result of a categorical comparison.
type Match string

const (
	Matched    Match = "MATCH"
	NotMatched Match = "NO_MATCH"
)

// Band classifies how far a numeric guess is from the answer.
type Band string

const (
	BandMatch Band = "MATCH"
	BandNear  Band = "NEAR"
	BandFar   Band = "FAR"
	BandOff   Band = "OFF"
)

// Direction says which way the guessed value should move.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Band thresholds in percent of the answer value.
const (
	matchPct = 5.0
	nearPct  = 12.0
	farPct   = 25.0
)

// NumericResult is a banded numeric comparison.
type NumericResult struct {
	Band      Band      `json:"band"`
	Direction Direction `json:"direction,omitempty"`
}

// Attributes is the comparison input for one stock. Numeric fields only ever
// come from a snapshot; NaN marks an unknown value.
type Attributes struct {
	Ticker        string
	Sector        string
	Industry      string
	Dividend      string
	LastClose     float64
	OneYearReturn float64
	MarketCapB    float64
}

// NewAttributes builds the comparison input field by field from the universe
// entry and its snapshot. A nil snapshot leaves every numeric field unknown.
func NewAttributes(stock models.Stock, snap *models.Snapshot) Attributes {
	a := Attributes{
		Ticker:        stock.Ticker,
		Sector:        stock.Sector,
		Industry:      stock.Industry,
		Dividend:      stock.DividendText(),
		LastClose:     math.NaN(),
		OneYearReturn: math.NaN(),
		MarketCapB:    math.NaN(),
	}
	if snap == nil {
		return a
	}
	if snap.LastClose > 0 {
		a.LastClose = snap.LastClose
	}
	// A zero return is indistinguishable from "not enough history".
	if snap.OneYearReturn != 0 {
		a.OneYearReturn = snap.OneYearReturn
	}
	if snap.MarketCapB > 0 {
		a.MarketCapB = snap.MarketCapB
	}
	return a
}

// Evaluation is the full feedback for one accepted guess.
type Evaluation struct {
	Ticker        string        `json:"ticker"`
	Letters       []LetterMark  `json:"letters"`
	Sector        Match         `json:"sector"`
	Industry      Match         `json:"industry"`
	Dividend      Match         `json:"dividend"`
	LastClose     NumericResult `json:"lastClose"`
	OneYearReturn NumericResult `json:"oneYearReturn"`
	MarketCap     NumericResult `json:"marketCap"`
	Correct       bool          `json:"correct"`
}

// Evaluate compares guess against answer. It has no side effects.
func Evaluate(guess, answer Attributes) Evaluation {
	return Evaluation{
		Ticker:        guess.Ticker,
		Letters:       LetterFeedback(guess.Ticker, answer.Ticker),
		Sector:        CompareCategory(guess.Sector, answer.Sector),
		Industry:      CompareCategory(guess.Industry, answer.Industry),
		Dividend:      CompareCategory(guess.Dividend, answer.Dividend),
		LastClose:     CompareNumeric(guess.LastClose, answer.LastClose),
		OneYearReturn: CompareNumeric(guess.OneYearReturn, answer.OneYearReturn),
		MarketCap:     CompareNumeric(guess.MarketCapB, answer.MarketCapB),
		Correct:       guess.Ticker == answer.Ticker,
	}
}

// LetterFeedback marks each guess position EXACT, PRESENT or ABSENT using the
// two-pass algorithm: exact positions first, then left-to-right matching
// against the answer letters not yet consumed. Callers guarantee equal length;
// extra guess positions are ABSENT.
func LetterFeedback(guess, answer string) []LetterMark {
	g, a := []rune(guess), []rune(answer)
	marks := make([]LetterMark, len(g))
	usedGuess := make([]bool, len(g))
	usedAnswer := make([]bool, len(a))

	for i := range g {
		if i < len(a) && g[i] == a[i] {
			marks[i] = LetterExact
			usedGuess[i] = true
			usedAnswer[i] = true
		}
	}

	for i := range g {
		if usedGuess[i] {
			continue
		}
		marks[i] = LetterAbsent
		for j := range a {
			if !usedAnswer[j] && a[j] == g[i] {
				marks[i] = LetterPresent
				usedAnswer[j] = true
				break
			}
		}
	}
	return marks
}

// CompareCategory is a case-insensitive equality check.
func CompareCategory(guess, answer string) Match {
	if strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(answer)) {
		return Matched
	}
	return NotMatched
}

// CompareNumeric bands |guess-answer| as a percentage of |answer|. Unknown
// values or a zero answer give OFF with no direction.
func CompareNumeric(guess, answer float64) NumericResult {
	if !isFinite(guess) || !isFinite(answer) || answer == 0 {
		return NumericResult{Band: BandOff}
	}

	pct := math.Abs(guess-answer) * 100 / math.Abs(answer)

	var band Band
	switch {
	case pct <= matchPct:
		return NumericResult{Band: BandMatch}
	case pct <= nearPct:
		band = BandNear
	case pct <= farPct:
		band = BandFar
	default:
		band = BandOff
	}

	dir := DirectionDown
	if guess < answer {
		dir = DirectionUp
	}
	return NumericResult{Band: band, Direction: dir}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
