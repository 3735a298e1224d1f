package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ProviderReason classifies a provider failure.
type ProviderReason string

const (
	ReasonRateLimited ProviderReason = "RATE_LIMITED"
	ReasonNoData      ProviderReason = "NO_DATA"
	ReasonTransport   ProviderReason = "TRANSPORT"
)

// ProviderError is the only error a close-price provider returns. All reasons
// are recoverable by moving to the next provider.
type ProviderError struct {
	Provider   string
	Reason     ProviderReason
	Symbol     string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Reason)
	if e.Symbol != "" {
		fmt.Fprintf(&b, " (%s)", e.Symbol)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewNoDataError reports a missing or degenerate series.
func NewNoDataError(provider, symbol string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ReasonNoData, Symbol: symbol, Err: err}
}

// NewRateLimitedError reports upstream throttling.
func NewRateLimitedError(provider, symbol string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ReasonRateLimited, Symbol: symbol, Err: err}
}

// NewTransportError reports network failures and unexpected HTTP statuses.
func NewTransportError(provider, symbol string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ReasonTransport, Symbol: symbol, StatusCode: status, Err: err}
}

// AsProviderError unwraps err into a *ProviderError when possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ValidationError reports a malformed universe, mapping or snapshot set.
// Every problem found is collected rather than stopping at the first.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid %s: %s", e.Source, e.Problems[0])
	}
	return fmt.Sprintf("invalid %s: %d problems: %s", e.Source, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Add records a problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// OrNil returns e when at least one problem was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// RejectReason classifies a guess that was not accepted.
type RejectReason string

const (
	RejectWrongLength    RejectReason = "WRONG_LENGTH"
	RejectAlreadyGuessed RejectReason = "ALREADY_GUESSED"
	RejectNoSelection    RejectReason = "NO_SELECTION"
)

// GuessRejected is surfaced to the player as a notice. It never consumes an attempt.
type GuessRejected struct {
	Reason RejectReason
	Ticker string
}

func (e *GuessRejected) Error() string {
	switch e.Reason {
	case RejectWrongLength:
		return fmt.Sprintf("%s has the wrong number of letters", e.Ticker)
	case RejectAlreadyGuessed:
		return fmt.Sprintf("%s was already guessed", e.Ticker)
	default:
		return "pick a stock from the list"
	}
}
