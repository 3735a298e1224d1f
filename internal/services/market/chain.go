// Package market resolves close-price series and builds per-ticker snapshots
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/metrics"
	"github.com/KeshavPeri/tickle/internal/models"
)

// ErrNoProviders is returned when a chain is built without any adapter.
var ErrNoProviders = errors.New("fallback chain needs at least one provider")

// Attempt records one provider call made while resolving a ticker.
type Attempt struct {
	Provider string
	Reason   models.ProviderReason // empty on success
	Err      string
}

// Resolution is the outcome of a chain run. Provenance is the provider name
// or SyntheticSource.
type Resolution struct {
	Closes     []models.DailyClose
	Provenance string
	SymbolUsed string
	Attempts   []Attempt
}

// Synthetic reports whether the series came from the generator.
func (r *Resolution) Synthetic() bool {
	return r.Provenance == SyntheticSource
}

type guardedProvider struct {
	provider interfaces.CloseProvider
	breaker  *gobreaker.CircuitBreaker
}

type fetchResult struct {
	closes []models.DailyClose
	symbol string
}

// Chain tries providers in order behind per-provider circuit breakers and
// falls back to a seeded synthetic walk when every provider fails.
type Chain struct {
	providers []guardedProvider
	logger    *common.Logger
	metrics   *metrics.Registry
}

// ChainOption configures a Chain
type ChainOption func(*chainSettings)

type chainSettings struct {
	logger      *common.Logger
	metrics     *metrics.Registry
	maxFailures uint32
	openTimeout time.Duration
}

// WithChainLogger sets the logger
func WithChainLogger(logger *common.Logger) ChainOption {
	return func(s *chainSettings) {
		s.logger = logger
	}
}

// WithChainMetrics records attempts and breaker state changes
func WithChainMetrics(m *metrics.Registry) ChainOption {
	return func(s *chainSettings) {
		s.metrics = m
	}
}

// WithBreaker sets consecutive failures before a provider is skipped and how
// long it stays skipped.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) ChainOption {
	return func(s *chainSettings) {
		s.maxFailures = maxFailures
		s.openTimeout = openTimeout
	}
}

// NewChain builds a chain over providers in the given order.
func NewChain(providers []interfaces.CloseProvider, opts ...ChainOption) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	settings := chainSettings{
		logger:      common.NewSilentLogger(),
		maxFailures: 3,
		openTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	c := &Chain{
		logger:  settings.logger,
		metrics: settings.metrics,
	}

	for _, p := range providers {
		name := p.Name()
		breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     settings.openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.maxFailures
			},
			// NO_DATA is about one ticker, not the provider's health.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				pe, ok := models.AsProviderError(err)
				return ok && pe.Reason == models.ReasonNoData
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Provider breaker state changed")
				if c.metrics != nil {
					c.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
		c.providers = append(c.providers, guardedProvider{provider: p, breaker: breaker})
	}

	return c, nil
}

// Providers lists provider names in fallback order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, gp := range c.providers {
		names[i] = gp.provider.Name()
	}
	return names
}

// Resolve returns the first acceptable series. Provider errors never escape:
// when all providers fail the synthetic series for (ticker, now's UTC day) is used.
func (c *Chain) Resolve(ctx context.Context, ticker string, now time.Time) *Resolution {
	res := &Resolution{}

	for _, gp := range c.providers {
		name := gp.provider.Name()
		closes, symbol, perr := c.attempt(ctx, gp, ticker)
		if perr == nil {
			res.Attempts = append(res.Attempts, Attempt{Provider: name})
			c.record(name, "ok")
			res.Closes = closes
			res.Provenance = name
			res.SymbolUsed = symbol
			c.logger.Debug().Str("ticker", ticker).Str("provider", name).Int("points", len(closes)).Msg("Closes resolved")
			return res
		}

		res.Attempts = append(res.Attempts, Attempt{Provider: name, Reason: perr.Reason, Err: perr.Error()})
		c.record(name, string(perr.Reason))
		c.logger.Warn().Str("ticker", ticker).Str("provider", name).Str("reason", string(perr.Reason)).Err(perr).Msg("Provider failed, trying next")
	}

	res.Closes = GenerateSynthetic(ticker, now)
	res.Provenance = SyntheticSource
	res.SymbolUsed = ticker
	c.record(SyntheticSource, "ok")
	c.logger.Warn().Str("ticker", ticker).Int("attempts", len(res.Attempts)).Msg("All providers failed, using synthetic series")
	return res
}

// attempt runs one provider through its breaker and normalizes the outcome.
func (c *Chain) attempt(ctx context.Context, gp guardedProvider, ticker string) ([]models.DailyClose, string, *models.ProviderError) {
	name := gp.provider.Name()

	out, err := gp.breaker.Execute(func() (interface{}, error) {
		closes, symbol, err := gp.provider.FetchCloses(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return fetchResult{closes: closes, symbol: symbol}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, "", models.NewRateLimitedError(name, ticker, err)
		}
		if pe, ok := models.AsProviderError(err); ok {
			return nil, "", pe
		}
		return nil, "", models.NewTransportError(name, ticker, 0, err)
	}

	result := out.(fetchResult)
	closes := models.CleanSeries(result.closes)
	if len(closes) < 2 {
		return nil, "", models.NewNoDataError(name, result.symbol, fmt.Errorf("degenerate series: %d of %d points usable", len(closes), len(result.closes)))
	}
	return closes, result.symbol, nil
}

func (c *Chain) record(provider, result string) {
	if c.metrics != nil {
		c.metrics.ProviderAttempts.WithLabelValues(provider, result).Inc()
	}
}
