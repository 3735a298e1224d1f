// Package stooq provides a close-price provider backed by Stooq's daily CSV export
package stooq

import (
	"bytes"
	"context"
	"encoding/csv"
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

const (
	ProviderName     = "stooq"
	DefaultBaseURL   = "https://stooq.com"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 5

	// MinRows is the shortest usable series Stooq is trusted for.
	MinRows = 50

	csvHeader    = "Date,Open,High,Low,Close"
	limitMessage = "exceeded the daily hits limit"
)

// Client downloads daily OHLC CSVs from Stooq
type Client struct {
	baseURL    string
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

// NewClient creates a new Stooq client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
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

// FetchCloses tries "<ticker>.us" then "<ticker>" and returns the first usable series.
func (c *Client) FetchCloses(ctx context.Context, ticker string) ([]models.DailyClose, string, error) {
	t := strings.ToLower(strings.TrimSpace(ticker))
	var lastErr *models.ProviderError
	for _, symbol := range []string{t + ".us", t} {
		closes, err := c.fetchSymbol(ctx, symbol)
		if err == nil {
			return closes, symbol, nil
		}
		lastErr = err
		if err.Reason != models.ReasonNoData {
			return nil, "", err
		}
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("Stooq symbol rejected")
	}
	return nil, "", lastErr
}

func (c *Client) fetchSymbol(ctx context.Context, symbol string) ([]models.DailyClose, *models.ProviderError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	params := url.Values{}
	params.Set("s", symbol)
	params.Set("i", "d")
	reqURL := fmt.Sprintf("%s/q/d/l/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, err)
	}
	req.Header.Set("User-Agent", "tickle/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewTransportError(ProviderName, symbol, resp.StatusCode, err)
	}

	c.logger.Debug().Str("symbol", symbol).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Stooq request")

	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(string(body)), limitMessage) {
		return nil, models.NewRateLimitedError(ProviderName, symbol, errors.New("daily hit limit reached"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.NewTransportError(ProviderName, symbol, resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	points, perr := parseCSV(body)
	if perr != nil {
		return nil, models.NewNoDataError(ProviderName, symbol, perr)
	}
	if len(points) < MinRows {
		return nil, models.NewNoDataError(ProviderName, symbol, fmt.Errorf("%d usable rows, need %d", len(points), MinRows))
	}
	return points, nil
}

// parseCSV extracts (Date, Close) pairs from a Stooq daily export.
func parseCSV(body []byte) ([]models.DailyClose, error) {
	text := strings.TrimSpace(string(body))
	if !strings.Contains(text, csvHeader) {
		return nil, errors.New("missing CSV header")
	}

	r := csv.NewReader(bytes.NewReader([]byte(text)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 5 {
		return nil, fmt.Errorf("only %d lines", len(rows))
	}

	dateCol, closeCol := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case "Date":
			dateCol = i
		case "Close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, errors.New("missing Date or Close column")
	}

	points := make([]models.DailyClose, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= closeCol || len(row) <= dateCol {
			continue
		}
		date, err := time.Parse(common.DayLayout, strings.TrimSpace(row[dateCol]))
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[closeCol]), 64)
		if err != nil {
			continue
		}
		points = append(points, models.DailyClose{Date: date, Close: v})
	}
	return models.CleanSeries(points), nil
}

var _ interfaces.CloseProvider = (*Client)(nil)
