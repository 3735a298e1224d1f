// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
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

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	ProviderName     = "eodhd"
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	// MinRows is the shortest series accepted as real data.
	MinRows = 50
)

// Client fetches daily closes and news from EODHD
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithClock overrides the time source used for the history window.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Name identifies the provider in logs and provenance tags.
func (c *Client) Name() string {
	return ProviderName
}

// symbolCandidates lists the spellings tried for a ticker, US listing first.
func symbolCandidates(ticker string) []string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	return []string{t + ".US", t}
}

// FetchCloses retrieves up to three years of daily closes, oldest first.
func (c *Client) FetchCloses(ctx context.Context, ticker string) ([]models.DailyClose, string, error) {
	var lastErr *models.ProviderError
	for _, symbol := range symbolCandidates(ticker) {
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
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", c.now().UTC().AddDate(-3, 0, 0).Format(common.DayLayout))

	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+symbol, params, &bars); err != nil {
		return nil, classify(symbol, err)
	}

	points := make([]models.DailyClose, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(common.DayLayout, bar.Date)
		if err != nil {
			continue
		}
		price := float64(bar.AdjustedClose)
		if price <= 0 {
			price = float64(bar.Close)
		}
		points = append(points, models.DailyClose{Date: date, Close: price})
	}

	points = models.CleanSeries(points)
	if len(points) < MinRows {
		return nil, models.NewNoDataError(ProviderName, symbol, fmt.Errorf("%d usable rows, need %d", len(points), MinRows))
	}
	return points, nil
}

// classify maps a request error onto the provider error taxonomy.
func classify(symbol string, err error) *models.ProviderError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return models.NewNoDataError(ProviderName, symbol, err)
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return models.NewRateLimitedError(ProviderName, symbol, err)
		}
		return models.NewTransportError(ProviderName, symbol, apiErr.StatusCode, err)
	}
	return models.NewTransportError(ProviderName, symbol, 0, err)
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
}

// GetNews retrieves recent headlines for a stock
func (c *Client) GetNews(ctx context.Context, stock models.Stock, limit int) ([]models.NewsItem, error) {
	params := url.Values{}
	params.Set("s", strings.ToUpper(stock.Ticker)+".US")
	params.Set("limit", strconv.Itoa(limit))

	var newsResp []newsResponse
	if err := c.get(ctx, "/news", params, &newsResp); err != nil {
		return nil, err
	}

	news := make([]models.NewsItem, 0, len(newsResp))
	for _, item := range newsResp {
		if item.Title == "" {
			continue
		}
		when := item.Date
		if publishedAt, err := time.Parse("2006-01-02T15:04:05+00:00", item.Date); err == nil {
			when = publishedAt.Format(common.DayLayout)
		} else if len(when) > 10 {
			when = when[:10]
		}
		news = append(news, models.NewsItem{
			Headline: item.Title,
			Source:   sourceFromLink(item.Link),
			When:     when,
			URL:      item.Link,
		})
		if len(news) == limit {
			break
		}
	}

	return news, nil
}

func sourceFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "EODHD"
	}
	return strings.TrimPrefix(u.Host, "www.")
}

type newsResponse struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

var (
	_ interfaces.CloseProvider = (*Client)(nil)
	_ interfaces.NewsSource    = (*Client)(nil)
)
