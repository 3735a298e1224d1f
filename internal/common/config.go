// Package common provides shared utilities for Tickle
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tickle
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Data        DataConfig      `toml:"data"`
	Storage     StorageConfig   `toml:"storage"`
	Batch       BatchConfig     `toml:"batch"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Providers   ProvidersConfig `toml:"providers"`
	Clients     ClientsConfig   `toml:"clients"`
	Game        GameConfig      `toml:"game"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"` // empty allows any origin
}

// DataConfig holds the on-disk locations of the game's data files.
type DataConfig struct {
	Universe  string `toml:"universe"`  // JSON list of stocks
	Snapshots string `toml:"snapshots"` // one <TICKER>.json per stock
	Daily     string `toml:"daily"`     // date -> ticker mapping
	Logos     string `toml:"logos"`     // <TICKER>.png
}

// StorageConfig selects the snapshot/mapping backend.
type StorageConfig struct {
	Backend   string        `toml:"backend"` // "file", "surrealdb" or "redis"
	SurrealDB SurrealConfig `toml:"surrealdb"`
	Redis     RedisConfig   `toml:"redis"`
}

// SurrealConfig holds SurrealDB connection settings
type SurrealConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// BatchConfig holds snapshot batch settings
type BatchConfig struct {
	Concurrency int    `toml:"concurrency"`
	MetricsFile string `toml:"metrics_file"` // optional prometheus textfile output
}

// SchedulerConfig controls the in-process daily refresh loop used by serve.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// GetInterval parses and returns the scheduler interval
func (c *SchedulerConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// ProvidersConfig holds the fallback order of close-price providers.
type ProvidersConfig struct {
	Order []string `toml:"order"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Stooq        HTTPClientConfig `toml:"stooq"`
	EODHD        HTTPClientConfig `toml:"eodhd"`
	AlphaVantage HTTPClientConfig `toml:"alphavantage"`
	Yahoo        HTTPClientConfig `toml:"yahoo"`
	Finnhub      HTTPClientConfig `toml:"finnhub"`
	NewsAPI      HTTPClientConfig `toml:"newsapi"`
	Gemini       GeminiConfig     `toml:"gemini"`
}

// HTTPClientConfig holds the settings shared by every upstream HTTP client
type HTTPClientConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *HTTPClientConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// GameConfig holds game session settings
type GameConfig struct {
	MaxAttempts int    `toml:"max_attempts"`
	TickEvery   string `toml:"tick_every"`
	SessionTTL  string `toml:"session_ttl"`
}

// GetTickEvery parses the clock tick period
func (c *GameConfig) GetTickEvery() time.Duration {
	d, err := time.ParseDuration(c.TickEvery)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// GetSessionTTL parses the idle session expiry
func (c *GameConfig) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // "console" or "json"
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Data: DataConfig{
			Universe:  "data/universe.json",
			Snapshots: "data/snapshots",
			Daily:     "data/daily.json",
			Logos:     "assets/logos",
		},
		Storage: StorageConfig{
			Backend: "file",
			SurrealDB: SurrealConfig{
				Address:   "ws://localhost:8000/rpc",
				Username:  "root",
				Password:  "root",
				Namespace: "tickle",
				Database:  "tickle",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "tickle",
			},
		},
		Batch: BatchConfig{
			Concurrency: 6,
		},
		Scheduler: SchedulerConfig{
			Interval: "6h",
		},
		Providers: ProvidersConfig{
			Order: []string{"stooq", "eodhd", "alphavantage", "yahoo"},
		},
		Clients: ClientsConfig{
			Stooq: HTTPClientConfig{
				Enabled:   true,
				BaseURL:   "https://stooq.com",
				RateLimit: 5,
				Timeout:   "20s",
			},
			EODHD: HTTPClientConfig{
				Enabled:   true,
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			AlphaVantage: HTTPClientConfig{
				Enabled:   true,
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 1,
				Timeout:   "30s",
			},
			Yahoo: HTTPClientConfig{
				Enabled: true,
			},
			Finnhub: HTTPClientConfig{
				Enabled:   true,
				BaseURL:   "https://finnhub.io/api/v1",
				RateLimit: 1,
				Timeout:   "20s",
			},
			NewsAPI: HTTPClientConfig{
				Enabled:   true,
				BaseURL:   "https://newsapi.org/v2",
				RateLimit: 1,
				Timeout:   "20s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Game: GameConfig{
			MaxAttempts: 6,
			TickEvery:   "250ms",
			SessionTTL:  "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first; existing
// environment variables are never replaced by it.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Batch.Concurrency <= 0 {
		config.Batch.Concurrency = 6
	}
	if config.Game.MaxAttempts <= 0 {
		config.Game.MaxAttempts = 6
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TICKLE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TICKLE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TICKLE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if origins := os.Getenv("TICKLE_CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = strings.Split(origins, ",")
	}

	if level := os.Getenv("TICKLE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TICKLE_DATA_PATH"); path != "" {
		config.Data.Universe = filepath.Join(path, "universe.json")
		config.Data.Snapshots = filepath.Join(path, "snapshots")
		config.Data.Daily = filepath.Join(path, "daily.json")
	}

	if backend := os.Getenv("TICKLE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}
	if addr := os.Getenv("TICKLE_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.SurrealDB.Address = addr
	}
	if addr := os.Getenv("TICKLE_REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}

	if c := os.Getenv("TICKLE_BATCH_CONCURRENCY"); c != "" {
		if n, err := strconv.Atoi(c); err == nil {
			config.Batch.Concurrency = n
		}
	}

	if order := os.Getenv("TICKLE_PROVIDERS"); order != "" {
		var names []string
		for _, n := range strings.Split(order, ",") {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				names = append(names, n)
			}
		}
		config.Providers.Order = names
	}

	if v := ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := ResolveAPIKey("alphavantage_api_key", config.Clients.AlphaVantage.APIKey); v != "" {
		config.Clients.AlphaVantage.APIKey = v
	}
	if v := ResolveAPIKey("finnhub_api_key", config.Clients.Finnhub.APIKey); v != "" {
		config.Clients.Finnhub.APIKey = v
	}
	if v := ResolveAPIKey("newsapi_api_key", config.Clients.NewsAPI.APIKey); v != "" {
		config.Clients.NewsAPI.APIKey = v
	}
	if v := ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey); v != "" {
		config.Clients.Gemini.APIKey = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from the environment, falling back to the
// configured value. Returns "" when neither is set.
func ResolveAPIKey(name string, fallback string) string {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":        {"EODHD_API_KEY", "TICKLE_EODHD_API_KEY"},
		"alphavantage_api_key": {"ALPHAVANTAGE_KEY", "TICKLE_ALPHAVANTAGE_KEY"},
		"finnhub_api_key":      {"FINNHUB_KEY", "TICKLE_FINNHUB_KEY"},
		"newsapi_api_key":      {"NEWSAPI_KEY", "TICKLE_NEWSAPI_KEY"},
		"gemini_api_key":       {"GEMINI_API_KEY", "TICKLE_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue
			}
		}
	}

	return fallback
}
