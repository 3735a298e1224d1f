package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Batch.Concurrency != 6 {
		t.Errorf("Batch.Concurrency default = %d, want 6", cfg.Batch.Concurrency)
	}
	if cfg.Game.MaxAttempts != 6 {
		t.Errorf("Game.MaxAttempts default = %d, want 6", cfg.Game.MaxAttempts)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend default = %q, want file", cfg.Storage.Backend)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("TICKLE_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_CORSOriginsEnv(t *testing.T) {
	t.Setenv("TICKLE_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v after env override", cfg.Server.CORSOrigins)
	}
}

func TestConfig_ProviderKeysFromEnv(t *testing.T) {
	t.Setenv("FINNHUB_KEY", "fh")
	t.Setenv("ALPHAVANTAGE_KEY", "av")
	t.Setenv("NEWSAPI_KEY", "na")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Clients.Finnhub.APIKey != "fh" {
		t.Errorf("Finnhub.APIKey = %q, want fh", cfg.Clients.Finnhub.APIKey)
	}
	if cfg.Clients.AlphaVantage.APIKey != "av" {
		t.Errorf("AlphaVantage.APIKey = %q, want av", cfg.Clients.AlphaVantage.APIKey)
	}
	if cfg.Clients.NewsAPI.APIKey != "na" {
		t.Errorf("NewsAPI.APIKey = %q, want na", cfg.Clients.NewsAPI.APIKey)
	}
}

func TestConfig_ProvidersOrderEnv(t *testing.T) {
	t.Setenv("TICKLE_PROVIDERS", " Yahoo, stooq ,,")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if len(cfg.Providers.Order) != 2 || cfg.Providers.Order[0] != "yahoo" || cfg.Providers.Order[1] != "stooq" {
		t.Errorf("Providers.Order = %v, want [yahoo stooq]", cfg.Providers.Order)
	}
}

func TestLoadConfig_FileMerge(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	over := filepath.Join(dir, "override.toml")

	if err := os.WriteFile(base, []byte("[batch]\nconcurrency = 3\n[server]\nport = 7000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(over, []byte("[server]\nport = 7001\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(base, over, filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Batch.Concurrency != 3 {
		t.Errorf("Batch.Concurrency = %d, want 3", cfg.Batch.Concurrency)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port = %d, want 7001", cfg.Server.Port)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[server\nport ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error for invalid TOML")
	}
}

func TestLoadConfig_ZeroConcurrencyDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(path, []byte("[batch]\nconcurrency = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.Concurrency != 6 {
		t.Errorf("Batch.Concurrency = %d, want 6", cfg.Batch.Concurrency)
	}
}

func TestHTTPClientConfig_GetTimeout(t *testing.T) {
	c := HTTPClientConfig{Timeout: "5s"}
	if c.GetTimeout() != 5*time.Second {
		t.Errorf("GetTimeout = %v, want 5s", c.GetTimeout())
	}
	c.Timeout = "garbage"
	if c.GetTimeout() != 30*time.Second {
		t.Errorf("GetTimeout fallback = %v, want 30s", c.GetTimeout())
	}
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{Environment: " Prod "}
	if !cfg.IsProduction() {
		t.Error("expected prod to be production")
	}
	cfg.Environment = "development"
	if cfg.IsProduction() {
		t.Error("expected development not to be production")
	}
}

func TestDayKey_UsesUTC(t *testing.T) {
	loc := time.FixedZone("east", 10*3600)
	ts := time.Date(2024, 1, 2, 5, 0, 0, 0, loc) // 2024-01-01T19:00Z
	if got := DayKey(ts); got != "2024-01-01" {
		t.Errorf("DayKey = %q, want 2024-01-01", got)
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDay = %v", d)
	}
	if _, err := ParseDay("05/03/2024"); err == nil {
		t.Error("expected error for bad layout")
	}
}
