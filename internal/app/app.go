// Package app wires configuration, storage, clients and services into one
// shared core used by every tickle command.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KeshavPeri/tickle/internal/clients/alphavantage"
	"github.com/KeshavPeri/tickle/internal/clients/eodhd"
	"github.com/KeshavPeri/tickle/internal/clients/finnhub"
	"github.com/KeshavPeri/tickle/internal/clients/gemini"
	"github.com/KeshavPeri/tickle/internal/clients/newsapi"
	"github.com/KeshavPeri/tickle/internal/clients/stooq"
	"github.com/KeshavPeri/tickle/internal/clients/yahoo"
	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/metrics"
	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/KeshavPeri/tickle/internal/services/batch"
	"github.com/KeshavPeri/tickle/internal/services/daily"
	"github.com/KeshavPeri/tickle/internal/services/market"
	"github.com/KeshavPeri/tickle/internal/services/universe"
	"github.com/KeshavPeri/tickle/internal/storage"
)

// App holds all initialized services, clients and storage.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Metrics     *metrics.Registry
	Universe    []models.Stock
	Lookup      universe.Lookup
	Search      *universe.Index
	Chain       *market.Chain
	Builder     *market.Builder
	Batch       *batch.Orchestrator
	Daily       *daily.Service
	Hub         *batch.Hub
	StartupTime time.Time

	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// NewApp initializes storage, the universe, provider clients and services.
func NewApp(config *common.Config) (*App, error) {
	startupStart := time.Now()
	common.LoadVersionFromFile()

	logger := common.NewLoggerFromConfig(config.Logging)

	stocks, err := universe.Load(config.Data.Universe)
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := metrics.NewRegistry()

	providers := buildProviders(config, logger)
	chain, err := market.NewChain(providers,
		market.WithChainLogger(logger),
		market.WithChainMetrics(registry),
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to build provider chain: %w", err)
	}

	ctx := context.Background()
	builder := market.NewBuilder(chain, builderOptions(ctx, config, logger, storageManager)...)

	index, err := universe.NewIndex(stocks)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}

	hub := batch.NewHub(logger)
	go hub.Run()

	orchestrator := batch.NewOrchestrator(builder, storageManager.SnapshotStore(),
		batch.WithConcurrency(config.Batch.Concurrency),
		batch.WithEventSink(hub),
		batch.WithMetrics(registry),
		batch.WithLogger(logger),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Metrics:     registry,
		Universe:    stocks,
		Lookup:      universe.NewLookup(stocks),
		Search:      index,
		Chain:       chain,
		Builder:     builder,
		Batch:       orchestrator,
		Daily:       daily.NewService(storageManager.DailyMappingStore(), storageManager.SnapshotStore(), builder, logger),
		Hub:         hub,
		StartupTime: startupStart,
	}

	logger.Info().
		Int("universe", len(stocks)).
		Strs("providers", chain.Providers()).
		Str("storage", storageManager.Backend()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// buildProviders registers usable close-price providers in the configured order.
func buildProviders(config *common.Config, logger *common.Logger) []interfaces.CloseProvider {
	var providers []interfaces.CloseProvider
	for _, name := range config.Providers.Order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case stooq.ProviderName:
			cfg := config.Clients.Stooq
			if !cfg.Enabled {
				continue
			}
			opts := []stooq.ClientOption{
				stooq.WithLogger(logger),
				stooq.WithRateLimit(cfg.RateLimit),
				stooq.WithTimeout(cfg.GetTimeout()),
			}
			if cfg.BaseURL != "" {
				opts = append(opts, stooq.WithBaseURL(cfg.BaseURL))
			}
			providers = append(providers, stooq.NewClient(opts...))

		case eodhd.ProviderName:
			cfg := config.Clients.EODHD
			key := common.ResolveAPIKey("eodhd_api_key", cfg.APIKey)
			if !cfg.Enabled || key == "" {
				logger.Debug().Msg("EODHD provider skipped: disabled or no API key")
				continue
			}
			providers = append(providers, newEODHD(cfg, key, logger))

		case alphavantage.ProviderName:
			cfg := config.Clients.AlphaVantage
			key := common.ResolveAPIKey("alphavantage_api_key", cfg.APIKey)
			if !cfg.Enabled || key == "" {
				logger.Debug().Msg("Alpha Vantage provider skipped: disabled or no API key")
				continue
			}
			opts := []alphavantage.ClientOption{
				alphavantage.WithLogger(logger),
				alphavantage.WithRateLimit(cfg.RateLimit),
				alphavantage.WithTimeout(cfg.GetTimeout()),
			}
			if cfg.BaseURL != "" {
				opts = append(opts, alphavantage.WithBaseURL(cfg.BaseURL))
			}
			providers = append(providers, alphavantage.NewClient(key, opts...))

		case yahoo.ProviderName:
			cfg := config.Clients.Yahoo
			if !cfg.Enabled {
				continue
			}
			providers = append(providers, yahoo.NewClient(
				yahoo.WithLogger(logger),
				yahoo.WithRateLimit(cfg.RateLimit),
			))

		default:
			logger.Warn().Str("provider", name).Msg("Unknown provider in [providers] order, ignoring")
		}
	}
	return providers
}

func newEODHD(cfg common.HTTPClientConfig, key string, logger *common.Logger) *eodhd.Client {
	opts := []eodhd.ClientOption{
		eodhd.WithLogger(logger),
		eodhd.WithRateLimit(cfg.RateLimit),
		eodhd.WithTimeout(cfg.GetTimeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, eodhd.WithBaseURL(cfg.BaseURL))
	}
	return eodhd.NewClient(key, opts...)
}

// builderOptions wires the optional enrichment clients. Missing keys only
// disable the matching enrichment step.
func builderOptions(ctx context.Context, config *common.Config, logger *common.Logger, sm interfaces.StorageManager) []market.BuilderOption {
	opts := []market.BuilderOption{market.WithBuilderLogger(logger)}

	if cfg := config.Clients.Finnhub; cfg.Enabled {
		if key := common.ResolveAPIKey("finnhub_api_key", cfg.APIKey); key != "" {
			fopts := []finnhub.ClientOption{
				finnhub.WithLogger(logger),
				finnhub.WithRateLimit(cfg.RateLimit),
				finnhub.WithTimeout(cfg.GetTimeout()),
			}
			if cfg.BaseURL != "" {
				fopts = append(fopts, finnhub.WithBaseURL(cfg.BaseURL))
			}
			fc := finnhub.NewClient(key, fopts...)
			opts = append(opts, market.WithProfiles(fc), market.WithLogos(fc, sm.LogoStore()))
		} else {
			logger.Warn().Msg("Finnhub API key not configured - profiles and logos will be unavailable")
		}
	}

	var news []interfaces.NewsSource
	if cfg := config.Clients.EODHD; cfg.Enabled {
		if key := common.ResolveAPIKey("eodhd_api_key", cfg.APIKey); key != "" {
			news = append(news, newEODHD(cfg, key, logger))
		}
	}
	if cfg := config.Clients.NewsAPI; cfg.Enabled {
		if key := common.ResolveAPIKey("newsapi_api_key", cfg.APIKey); key != "" {
			nopts := []newsapi.ClientOption{
				newsapi.WithLogger(logger),
				newsapi.WithRateLimit(cfg.RateLimit),
				newsapi.WithTimeout(cfg.GetTimeout()),
			}
			if cfg.BaseURL != "" {
				nopts = append(nopts, newsapi.WithBaseURL(cfg.BaseURL))
			}
			news = append(news, newsapi.NewClient(key, nopts...))
		}
	}
	if len(news) > 0 {
		opts = append(opts, market.WithNewsSources(news...))
	}

	if key := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey); key != "" {
		gc, err := gemini.NewClient(ctx, key,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			opts = append(opts, market.WithInsight(gc))
		}
	}

	return opts
}

// RunBatch builds snapshots for the whole universe.
func (a *App) RunBatch(ctx context.Context, force bool) (*batch.Result, error) {
	result, err := a.Batch.Run(ctx, a.Universe, force)
	if path := a.Config.Batch.MetricsFile; path != "" {
		if werr := a.Metrics.WriteTextfile(path); werr != nil {
			a.Logger.Warn().Err(werr).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}
	return result, err
}

// RunDaily selects the day's ticker and refreshes its snapshot.
func (a *App) RunDaily(ctx context.Context, date time.Time, force bool) (*daily.UpdateResult, error) {
	return a.Daily.Update(ctx, a.Universe, date, force)
}

// ValidateData checks the universe, the daily mapping and the mapped snapshots.
func (a *App) ValidateData(ctx context.Context) error {
	mapping, err := a.Storage.DailyMappingStore().AllDaily(ctx)
	if err != nil {
		return fmt.Errorf("failed to read daily mapping: %w", err)
	}
	return universe.ValidateData(ctx, a.Universe, mapping, a.Storage.SnapshotStore())
}

// Close stops background work and releases storage.
func (a *App) Close() {
	a.StopScheduler()
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.Search != nil {
		if err := a.Search.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close search index")
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
