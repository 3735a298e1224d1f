package interfaces

import (
	"context"

	"github.com/KeshavPeri/tickle/internal/models"
)

// CloseProvider fetches a daily close series from one upstream source.
// Every failure is a *models.ProviderError.
type CloseProvider interface {
	Name() string
	// FetchCloses returns closes oldest first and the symbol spelling that worked.
	FetchCloses(ctx context.Context, ticker string) ([]models.DailyClose, string, error)
}

// ProfileClient resolves company profile data for enrichment.
type ProfileClient interface {
	GetProfile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
}

// ImageFetcher downloads a logo or favicon image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// NewsSource returns recent headlines for a stock.
type NewsSource interface {
	Name() string
	GetNews(ctx context.Context, stock models.Stock, limit int) ([]models.NewsItem, error)
}

// InsightGenerator writes the one-line insight shown after a game.
type InsightGenerator interface {
	Insight(ctx context.Context, stock models.Stock, snap *models.Snapshot) (string, error)
}
