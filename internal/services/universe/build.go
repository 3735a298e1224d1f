package universe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/models"
)

// DefaultSourceURL is the S&P 500 constituents page.
const DefaultSourceURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Tier sizes and the overall target.
const (
	DefaultTarget = 400
	tierATarget   = 140
	tierBTarget   = 220
)

// Tier labels.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

// PinnedTickers always land in tier A.
var PinnedTickers = []string{
	"MSFT", "AAPL", "AMZN", "GOOGL", "META", "NVDA", "TSLA",
	"AVGO", "AMD", "INTC", "QCOM", "TXN", "MU", "ADI", "LRCX", "AMAT", "KLAC",
	"CRM", "NOW", "ORCL", "PLTR", "SNOW", "DDOG", "NET", "CRWD", "PANW", "ZS",
	"ANET", "DELL", "SMCI", "IBM", "INTU", "ADBE", "CSCO", "UBER",
}

var techKeywords = []string{
	"semiconductor", "chip", "electronics",
	"software", "application software", "systems software",
	"cloud", "data", "analytics", "ai", "artificial",
	"cyber", "security", "network", "infrastructure",
}

// Builder rebuilds the universe from the constituents table.
type Builder struct {
	sourceURL  string
	httpClient *http.Client
	logger     *common.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSourceURL overrides the page URL.
func WithSourceURL(url string) BuilderOption {
	return func(b *Builder) { b.sourceURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) BuilderOption {
	return func(b *Builder) { b.httpClient = hc }
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *common.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder creates a universe builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		sourceURL:  DefaultSourceURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fetches the table and selects up to target stocks, sorted by ticker.
func (b *Builder) Build(ctx context.Context, target int) ([]models.Stock, error) {
	if target <= 0 {
		target = DefaultTarget
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "tickle-bot")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", b.sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, b.sourceURL)
	}

	pool, err := ParseConstituents(resp.Body)
	if err != nil {
		return nil, err
	}

	picked := Select(pool, target)
	counts := map[string]int{}
	for _, s := range picked {
		counts[s.Tier]++
	}
	b.logger.Info().
		Int("parsed", len(pool)).
		Int("picked", len(picked)).
		Int("tier_a", counts[TierA]).
		Int("tier_b", counts[TierB]).
		Int("tier_c", counts[TierC]).
		Msg("Universe built")

	return picked, nil
}

// ParseConstituents reads the first wikitable and returns one stock per
// alphabetic ticker with name, sector and industry present.
func ParseConstituents(r io.Reader) ([]models.Stock, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := findWikitable(doc)
	if table == nil {
		return nil, errors.New("could not locate constituents wikitable")
	}

	rows := tableRows(table)
	if len(rows) < 2 {
		return nil, errors.New("parsed too few rows")
	}

	header := rows[0]
	col := func(name string) int {
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), name) {
				return i
			}
		}
		return -1
	}
	idxSymbol, idxSecurity := col("symbol"), col("security")
	idxSector, idxIndustry := col("gics sector"), col("gics sub-industry")
	if idxSymbol < 0 || idxSecurity < 0 || idxSector < 0 || idxIndustry < 0 {
		return nil, errors.New("unexpected table columns")
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	byTicker := make(map[string]models.Stock)
	var order []string
	for _, row := range rows[1:] {
		ticker := strings.ToUpper(strings.TrimSpace(cell(row, idxSymbol)))
		if !models.IsValidTicker(ticker) {
			continue
		}
		s := models.Stock{
			Ticker:   ticker,
			Name:     cell(row, idxSecurity),
			Sector:   cell(row, idxSector),
			Industry: cell(row, idxIndustry),
		}
		if s.Name == "" || s.Sector == "" || s.Industry == "" {
			continue
		}
		if _, seen := byTicker[ticker]; !seen {
			order = append(order, ticker)
		}
		byTicker[ticker] = s
	}

	out := make([]models.Stock, 0, len(order))
	for _, t := range order {
		out = append(out, byTicker[t])
	}
	return out, nil
}

func findWikitable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, a := range n.Attr {
			if a.Key == "class" && strings.Contains(a.Val, "wikitable") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findWikitable(c); t != nil {
			return t
		}
	}
	return nil
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, nodeText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

// nodeText concatenates text content, skipping script and style, with
// whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// ClassifyTier returns A for pinned tickers, B for technology or data-ish
// companies, C otherwise.
func ClassifyTier(s models.Stock, pinned map[string]bool) string {
	if pinned[s.Ticker] {
		return TierA
	}
	sector := strings.ToLower(s.Sector)
	industry := strings.ToLower(s.Industry)
	name := strings.ToLower(s.Name)

	if strings.Contains(sector, "technology") {
		return TierB
	}
	for _, k := range techKeywords {
		if strings.Contains(industry, k) || strings.Contains(name, k) {
			return TierB
		}
	}
	return TierC
}

// InclusionScore ranks stocks within a tier.
func InclusionScore(s models.Stock) int {
	sector := strings.ToLower(s.Sector)
	industry := strings.ToLower(s.Industry)

	score := 0
	if strings.Contains(sector, "technology") {
		score += 40
	}
	if strings.Contains(industry, "semiconductor") {
		score += 50
	}
	if strings.Contains(industry, "software") {
		score += 35
	}
	if strings.Contains(industry, "it services") {
		score += 25
	}
	if strings.Contains(industry, "internet") {
		score += 20
	}
	if strings.Contains(industry, "data") {
		score += 20
	}
	if strings.Contains(industry, "cyber") || strings.Contains(industry, "security") {
		score += 30
	}
	if strings.Contains(industry, "cloud") {
		score += 25
	}
	if strings.Contains(sector, "communication") {
		score += 12
	}
	if strings.Contains(sector, "consumer") {
		score += 10
	}
	if strings.Contains(sector, "financial") {
		score += 8
	}
	return score
}

type scored struct {
	stock models.Stock
	score int
}

// Select assigns tiers and picks up to target stocks: the best 140 of A, 220
// of B, the remainder from C, then tops up from B, C and A. The result is
// sorted by ticker.
func Select(pool []models.Stock, target int) []models.Stock {
	pinned := make(map[string]bool, len(PinnedTickers))
	for _, t := range PinnedTickers {
		pinned[t] = true
	}

	tiers := map[string][]scored{}
	for _, s := range pool {
		s.Tier = ClassifyTier(s, pinned)
		tiers[s.Tier] = append(tiers[s.Tier], scored{stock: s, score: InclusionScore(s)})
	}
	for _, t := range tiers {
		sort.SliceStable(t, func(i, j int) bool {
			if t[i].score != t[j].score {
				return t[i].score > t[j].score
			}
			return t[i].stock.Ticker < t[j].stock.Ticker
		})
	}

	a, b, c := tiers[TierA], tiers[TierB], tiers[TierC]
	takeA := min(tierATarget, len(a))
	takeB := min(tierBTarget, len(b))
	takeC := max(0, min(target-takeA-takeB, len(c)))

	var picked []models.Stock
	seen := make(map[string]bool)
	add := func(list []scored, n int) {
		for _, s := range list[:n] {
			picked = append(picked, s.stock)
			seen[s.stock.Ticker] = true
		}
	}
	add(a, takeA)
	add(b, takeB)
	add(c, takeC)

	topUp := func(list []scored) {
		for _, s := range list {
			if len(picked) >= target {
				return
			}
			if seen[s.stock.Ticker] {
				continue
			}
			picked = append(picked, s.stock)
			seen[s.stock.Ticker] = true
		}
	}
	topUp(b)
	topUp(c)
	topUp(a)

	if len(picked) > target {
		picked = picked[:target]
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].Ticker < picked[j].Ticker })
	return picked
}
