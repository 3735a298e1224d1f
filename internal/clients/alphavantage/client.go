// Package alphavantage provides a close-price provider backed by Alpha Vantage
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	ProviderName     = "alphavantage"
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1

	MinRows = 30
)

// Client fetches TIME_SERIES_DAILY_ADJUSTED series
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     common.NewSilentLogger(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider in logs and provenance tags.
func (c *Client) Name() string {
	return ProviderName
}

// dailyResponse covers both the data payload and the throttle/error envelopes.
type dailyResponse struct {
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	ErrorMessage string                       `json:"Error Message"`
	Series       map[string]map[string]string `json:"Time Series (Daily)"`
}

// FetchCloses tries the ticker as given, then with class dots as dashes.
func (c *Client) FetchCloses(ctx context.Context, ticker string) ([]models.DailyClose, string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	candidates := []string{t}
	if dashed := strings.ReplaceAll(t, ".", "-"); dashed != t {
		candidates = append(candidates, dashed)
	}

	var lastErr *models.ProviderError
	for _, symbol := range candidates {
		closes, err := c.fetchSymbol(ctx, symbol)
		if err == nil {
			return closes, symbol, nil
		}
		lastErr = err
		if err.Reason != models.ReasonNoData {
			return nil, "", err
		}
	}
	return nil, "", lastErr
}

func (c *Client) fetchSymbol(ctx context.Context, symbol string) ([]models.DailyClose, *models.ProviderError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, models.NewRateLimitedError(ProviderName, symbol, nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.NewTransportError(ProviderName, symbol, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var payload dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	switch {
	case payload.Note != "":
		return nil, models.NewRateLimitedError(ProviderName, symbol, fmt.Errorf("%s", payload.Note))
	case payload.Information != "":
		return nil, models.NewRateLimitedError(ProviderName, symbol, fmt.Errorf("%s", payload.Information))
	case payload.ErrorMessage != "":
		return nil, models.NewNoDataError(ProviderName, symbol, fmt.Errorf("%s", payload.ErrorMessage))
	case len(payload.Series) == 0:
		return nil, models.NewNoDataError(ProviderName, symbol, fmt.Errorf("empty time series"))
	}

	points := make([]models.DailyClose, 0, len(payload.Series))
	for day, fields := range payload.Series {
		date, err := time.Parse(common.DayLayout, day)
		if err != nil {
			continue
		}
		raw, ok := fields["5. adjusted close"]
		if !ok {
			raw = fields["4. close"]
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		points = append(points, models.DailyClose{Date: date, Close: v})
	}

	points = models.CleanSeries(points)
	if len(points) < MinRows {
		return nil, models.NewNoDataError(ProviderName, symbol, fmt.Errorf("%d usable rows, need %d", len(points), MinRows))
	}

	c.logger.Debug().Str("symbol", symbol).Int("rows", len(points)).Msg("Alpha Vantage series fetched")
	return points, nil
}

var _ interfaces.CloseProvider = (*Client)(nil)
