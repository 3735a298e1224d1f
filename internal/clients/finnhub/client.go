// Package finnhub provides company profile and logo lookups from Finnhub
package finnhub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 1

	maxImageBytes = 512 * 1024
)

// Client wraps the Finnhub REST API
type Client struct {
	apiKey  string
	client  *resty.Client
	logger  *common.Logger
	limiter *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
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
		c.client.SetTimeout(timeout)
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		client:  resty.New().SetBaseURL(DefaultBaseURL).SetTimeout(DefaultTimeout),
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type profileResponse struct {
	Ticker               string  `json:"ticker"`
	Name                 string  `json:"name"`
	Logo                 string  `json:"logo"`
	WebURL               string  `json:"weburl"`
	MarketCapitalization float64 `json:"marketCapitalization"` // millions
}

// GetProfile fetches /stock/profile2. An empty payload yields models.ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var out profileResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.ToUpper(ticker),
			"token":  c.apiKey,
		}).
		SetResult(&out).
		Get("/stock/profile2")
	if err != nil {
		return nil, fmt.Errorf("finnhub profile request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("finnhub profile: status %d", resp.StatusCode())
	}
	if out.Name == "" && out.Logo == "" && out.WebURL == "" {
		return nil, fmt.Errorf("finnhub profile %s: %w", ticker, models.ErrNotFound)
	}

	c.logger.Debug().Str("ticker", ticker).Str("logo", out.Logo).Msg("Finnhub profile fetched")

	return &models.CompanyProfile{
		Ticker:     strings.ToUpper(ticker),
		Name:       out.Name,
		LogoURL:    out.Logo,
		WebURL:     out.WebURL,
		MarketCapB: out.MarketCapitalization / 1000,
	}, nil
}

// FetchImage downloads an image from an absolute URL.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", "tickle/1.0").
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("image %s: status %d", imageURL, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("image %s: empty body", imageURL)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image %s: %d bytes exceeds limit", imageURL, len(body))
	}
	return body, nil
}

var (
	_ interfaces.ProfileClient = (*Client)(nil)
	_ interfaces.ImageFetcher  = (*Client)(nil)
)
