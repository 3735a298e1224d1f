// Package yahoo provides a close-price provider backed by Yahoo Finance charts
package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/time/rate"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	ProviderName     = "yahoo"
	DefaultRateLimit = 2

	MinRows = 30
)

// ChartFunc loads daily bars for one symbol between start and end.
type ChartFunc func(symbol string, start, end time.Time) ([]models.DailyClose, error)

// Client fetches two years of daily bars through finance-go
type Client struct {
	fetch   ChartFunc
	logger  *common.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithChartFunc replaces the finance-go chart call.
func WithChartFunc(fn ChartFunc) ClientOption {
	return func(c *Client) {
		c.fetch = fn
	}
}

// WithClock overrides the time source used for the history window.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Yahoo chart client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		fetch:   financeChart,
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// financeChart iterates the finance-go chart endpoint for daily bars.
func financeChart(symbol string, start, end time.Time) ([]models.DailyClose, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	var points []models.DailyClose
	iter := chart.Get(params)
	for iter.Next() {
		bar := iter.Bar()
		price, _ := bar.Close.Float64()
		points = append(points, models.DailyClose{
			Date:  time.Unix(int64(bar.Timestamp), 0).UTC(),
			Close: price,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// Name identifies the provider in logs and provenance tags.
func (c *Client) Name() string {
	return ProviderName
}

// FetchCloses tries the ticker as given, then with class dots as dashes.
func (c *Client) FetchCloses(ctx context.Context, ticker string) ([]models.DailyClose, string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	candidates := []string{t}
	if dashed := strings.ReplaceAll(t, ".", "-"); dashed != t {
		candidates = append(candidates, dashed)
	}

	end := c.now().UTC()
	start := end.AddDate(-2, 0, 0)

	var lastErr *models.ProviderError
	for _, symbol := range candidates {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", models.NewTransportError(ProviderName, symbol, 0, fmt.Errorf("rate limit wait: %w", err))
		}

		points, err := c.fetch(symbol, start, end)
		if err != nil {
			lastErr = classify(symbol, err)
			if lastErr.Reason != models.ReasonNoData {
				return nil, "", lastErr
			}
			continue
		}

		points = models.CleanSeries(points)
		if len(points) < MinRows {
			lastErr = models.NewNoDataError(ProviderName, symbol, fmt.Errorf("%d usable rows, need %d", len(points), MinRows))
			continue
		}

		c.logger.Debug().Str("symbol", symbol).Int("rows", len(points)).Msg("Yahoo chart fetched")
		return points, symbol, nil
	}
	return nil, "", lastErr
}

// classify maps finance-go errors, which carry no stable type, by message.
func classify(symbol string, err error) *models.ProviderError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return models.NewRateLimitedError(ProviderName, symbol, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no data") || strings.Contains(msg, "404"):
		return models.NewNoDataError(ProviderName, symbol, err)
	}
	return models.NewTransportError(ProviderName, symbol, 0, err)
}

var _ interfaces.CloseProvider = (*Client)(nil)
