// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const (
	DefaultModel = "gemini-2.0-flash"

	maxInsightLen = 160
)

// ErrLeaksAnswer is returned when generated text names the stock.
var ErrLeaksAnswer = errors.New("insight mentions the ticker or company name")

// Client generates post-game insights with Gemini
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateContent generates text from a prompt
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Msg("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	return sb.String(), nil
}

// Insight writes a one-sentence teaser about the stock's year.
func (c *Client) Insight(ctx context.Context, stock models.Stock, snap *models.Snapshot) (string, error) {
	text, err := c.GenerateContent(ctx, buildInsightPrompt(stock, snap))
	if err != nil {
		return "", err
	}
	return sanitizeInsight(text, stock)
}

// buildInsightPrompt describes the stock without naming it.
func buildInsightPrompt(stock models.Stock, snap *models.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("Write one short sentence (under 25 words) a quiz player would enjoy reading after guessing a stock. ")
	sb.WriteString("Do not mention the company name, its ticker symbol, or any brand names.\n\n")
	fmt.Fprintf(&sb, "Sector: %s\nIndustry: %s\n", stock.Sector, stock.Industry)
	if snap != nil {
		fmt.Fprintf(&sb, "Last close: $%.2f\n", snap.LastClose)
		fmt.Fprintf(&sb, "One-year return: %.1f%%\n", snap.OneYearReturn)
		if snap.MarketCapB > 0 {
			fmt.Fprintf(&sb, "Market cap: $%.0fB\n", snap.MarketCapB)
		}
	}
	sb.WriteString("\nRespond with the sentence only.")
	return sb.String()
}

// sanitizeInsight keeps the first line, strips quotes and rejects answer leaks.
func sanitizeInsight(text string, stock models.Stock) (string, error) {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.Trim(line, "\"'` ")
	if line == "" {
		return "", fmt.Errorf("no content generated")
	}

	lower := strings.ToLower(line)
	if stock.Ticker != "" && containsWord(lower, strings.ToLower(stock.Ticker)) {
		return "", ErrLeaksAnswer
	}
	if name := leadingName(stock.Name); name != "" && strings.Contains(lower, name) {
		return "", ErrLeaksAnswer
	}

	if len(line) > maxInsightLen {
		line = strings.TrimSpace(line[:maxInsightLen]) + "…"
	}
	return line, nil
}

// leadingName returns the first word of a company name, lower-cased.
func leadingName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) > 1 && fields[0] == "the" {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,")
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

var _ interfaces.InsightGenerator = (*Client)(nil)
