package market

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

// MaxNews is the number of headlines kept on a snapshot.
const MaxNews = 3

// Builder turns a stock into a complete snapshot: closes from the chain,
// windows and stats, then best-effort enrichment.
type Builder struct {
	chain    *Chain
	profiles interfaces.ProfileClient
	images   interfaces.ImageFetcher
	logos    interfaces.LogoStore
	news     []interfaces.NewsSource
	insight  interfaces.InsightGenerator
	logger   *common.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithProfiles enables market cap and logo URL lookups
func WithProfiles(p interfaces.ProfileClient) BuilderOption {
	return func(b *Builder) {
		b.profiles = p
	}
}

// WithLogos enables logo caching through fetcher into store
func WithLogos(fetcher interfaces.ImageFetcher, store interfaces.LogoStore) BuilderOption {
	return func(b *Builder) {
		b.images = fetcher
		b.logos = store
	}
}

// WithNewsSources sets the news sources, tried in order
func WithNewsSources(sources ...interfaces.NewsSource) BuilderOption {
	return func(b *Builder) {
		b.news = append(b.news, sources...)
	}
}

// WithInsight sets the insight generator
func WithInsight(g interfaces.InsightGenerator) BuilderOption {
	return func(b *Builder) {
		b.insight = g
	}
}

// WithBuilderLogger sets the logger
func WithBuilderLogger(logger *common.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a snapshot builder over chain
func NewBuilder(chain *Chain, opts ...BuilderOption) *Builder {
	b := &Builder{
		chain:  chain,
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DefaultInsight is used whenever no generated insight is available.
func DefaultInsight(stock models.Stock) string {
	return fmt.Sprintf("Tracking %s (%s).", stock.Name, stock.Ticker)
}

// Build resolves closes and assembles the snapshot for stock as of now.
// Enrichment failures are logged and leave their fields empty.
func (b *Builder) Build(ctx context.Context, stock models.Stock, now time.Time) (*models.Snapshot, error) {
	if !models.IsValidTicker(stock.Ticker) {
		return nil, fmt.Errorf("invalid ticker %q", stock.Ticker)
	}

	res := b.chain.Resolve(ctx, stock.Ticker, now)
	closes := models.Closes(res.Closes)
	windows := BuildWindows(closes)

	snap := &models.Snapshot{
		Ticker:        stock.Ticker,
		OneMonth:      windows.OneMonth,
		SixMonth:      windows.SixMonth,
		OneYear:       windows.OneYear,
		LastClose:     windows.LastClose(),
		OneYearReturn: ComputeOneYearReturn(closes),
		TopNews:       []models.NewsItem{},
		BuiltDateUTC:  common.DayKey(now),
		BuiltAt:       now.UTC(),
		Source:        res.Provenance,
		SymbolUsed:    res.SymbolUsed,
	}

	b.enrich(ctx, stock, snap)
	snap.Normalize()
	return snap, nil
}

func (b *Builder) enrich(ctx context.Context, stock models.Stock, snap *models.Snapshot) {
	var profile *models.CompanyProfile

	b.safely(stock.Ticker, "profile", func() {
		if b.profiles == nil {
			return
		}
		p, err := b.profiles.GetProfile(ctx, stock.Ticker)
		if err != nil {
			b.logger.Warn().Str("ticker", stock.Ticker).Err(err).Msg("Profile lookup failed")
			return
		}
		profile = p
		snap.MarketCapB = p.MarketCapB
	})

	b.safely(stock.Ticker, "logo", func() {
		b.cacheLogo(ctx, stock, profile)
	})

	b.safely(stock.Ticker, "news", func() {
		snap.TopNews = b.fetchNews(ctx, stock)
	})

	snap.Insight = DefaultInsight(stock)
	b.safely(stock.Ticker, "insight", func() {
		if b.insight == nil {
			return
		}
		text, err := b.insight.Insight(ctx, stock, snap)
		if err != nil {
			b.logger.Warn().Str("ticker", stock.Ticker).Err(err).Msg("Insight generation failed")
			return
		}
		if text = strings.TrimSpace(text); text != "" {
			snap.Insight = text
		}
	})
}

// safely runs one enrichment step, converting a panic into a logged warning.
func (b *Builder) safely(ticker, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("ticker", ticker).
				Str("step", step).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in enrichment")
		}
	}()
	fn()
}

func (b *Builder) fetchNews(ctx context.Context, stock models.Stock) []models.NewsItem {
	for _, src := range b.news {
		items, err := src.GetNews(ctx, stock, MaxNews)
		if err != nil {
			b.logger.Warn().Str("ticker", stock.Ticker).Str("source", src.Name()).Err(err).Msg("News fetch failed")
			continue
		}
		if len(items) == 0 {
			continue
		}
		if len(items) > MaxNews {
			items = items[:MaxNews]
		}
		return items
	}
	return []models.NewsItem{}
}

// cacheLogo stores a logo once per ticker, trying the profile logo first and
// then favicons for the known domains.
func (b *Builder) cacheLogo(ctx context.Context, stock models.Stock, profile *models.CompanyProfile) {
	if b.logos == nil || b.images == nil || b.logos.HasLogo(ctx, stock.Ticker) {
		return
	}

	for _, candidate := range logoCandidates(stock, profile) {
		data, err := b.images.FetchImage(ctx, candidate)
		if err != nil {
			b.logger.Debug().Str("ticker", stock.Ticker).Str("url", candidate).Err(err).Msg("Logo candidate failed")
			continue
		}
		if err := b.logos.SaveLogo(ctx, stock.Ticker, data); err != nil {
			b.logger.Warn().Str("ticker", stock.Ticker).Err(err).Msg("Logo save failed")
		}
		return
	}
	b.logger.Debug().Str("ticker", stock.Ticker).Msg("No logo available")
}

// FaviconURL is the favicon service used when no profile logo exists.
func FaviconURL(domain string) string {
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(domain) + "&sz=128"
}

func logoCandidates(stock models.Stock, profile *models.CompanyProfile) []string {
	var out []string
	if profile != nil && profile.LogoURL != "" {
		out = append(out, profile.LogoURL)
	}
	seen := map[string]bool{}
	for _, d := range []string{stock.Domain, domainOf(profile)} {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, FaviconURL(d))
	}
	return out
}

func domainOf(profile *models.CompanyProfile) string {
	if profile == nil || profile.WebURL == "" {
		return ""
	}
	u, err := url.Parse(profile.WebURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

var _ interfaces.SnapshotBuilder = (*Builder)(nil)
