// Package newsapi provides headline lookups from newsapi.org
package newsapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	SourceName       = "newsapi"
	DefaultBaseURL   = "https://newsapi.org/v2"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 1
)

// Client wraps the NewsAPI /everything endpoint
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

// NewClient creates a new NewsAPI client
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

type everythingResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Name identifies the news source in logs.
func (c *Client) Name() string {
	return SourceName
}

// GetNews searches recent articles mentioning the company name or ticker.
func (c *Client) GetNews(ctx context.Context, stock models.Stock, limit int) ([]models.NewsItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	query := stock.Name
	if query == "" {
		query = stock.Ticker
	}

	var out everythingResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"pageSize": strconv.Itoa(limit),
			"sortBy":   "publishedAt",
			"apiKey":   c.apiKey,
		}).
		SetResult(&out).
		SetError(&out).
		Get("/everything")
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	if resp.IsError() || out.Status == "error" {
		return nil, fmt.Errorf("newsapi: status %d: %s", resp.StatusCode(), out.Message)
	}

	news := make([]models.NewsItem, 0, limit)
	for _, a := range out.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		when := a.PublishedAt
		if len(when) > 10 {
			when = when[:10]
		}
		news = append(news, models.NewsItem{
			Headline: a.Title,
			Source:   a.Source.Name,
			When:     when,
			URL:      a.URL,
		})
		if len(news) == limit {
			break
		}
	}

	c.logger.Debug().Str("ticker", stock.Ticker).Int("items", len(news)).Msg("NewsAPI headlines fetched")
	return news, nil
}

var _ interfaces.NewsSource = (*Client)(nil)
