package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/KeshavPeri/tickle/internal/services/universe"
)

// writeTestConfig creates a config whose only provider always fails, so
// every snapshot is synthetic.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	for _, k := range []string{
		"EODHD_API_KEY", "TICKLE_EODHD_API_KEY",
		"ALPHAVANTAGE_KEY", "TICKLE_ALPHAVANTAGE_KEY",
		"FINNHUB_KEY", "TICKLE_FINNHUB_KEY",
		"NEWSAPI_KEY", "TICKLE_NEWSAPI_KEY",
		"GEMINI_API_KEY", "TICKLE_GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	universePath := filepath.Join(dir, "universe.json")
	require.NoError(t, universe.Save(universePath, []models.Stock{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Information Technology", Industry: "Technology Hardware", Dividend: true},
		{Ticker: "KO", Name: "Coca-Cola Company", Sector: "Consumer Staples", Industry: "Soft Drinks", Dividend: true},
	}))

	toml := fmt.Sprintf(`
[data]
universe = %q
snapshots = %q
daily = %q
logos = %q

[providers]
order = ["stooq"]

[clients.stooq]
enabled = true
base_url = %q
rate_limit = 100

[logging]
level = "error"
`, universePath, filepath.Join(dir, "snapshots"), filepath.Join(dir, "daily.json"), filepath.Join(dir, "logos"), upstream.URL)

	path := filepath.Join(dir, "tickle.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tickle "))
}

func TestBatchDailyValidate(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	metrics := filepath.Join(dir, "tickle.prom")

	out, err := run(t, "batch", "--config", cfg, "--concurrency", "2", "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Contains(t, out, "done=2 built=2 skipped=0 failed=0")
	assert.FileExists(t, metrics)

	out, err = run(t, "daily", "--config", cfg, "--date", "2026-03-02")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2026-03-02 "), out)
	assert.Contains(t, out, "source=synthetic")

	out, err = run(t, "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "data OK")
}

func TestDailyCommand_BadDate(t *testing.T) {
	cfg, _ := writeTestConfig(t)
	_, err := run(t, "daily", "--config", cfg, "--date", "03/02/2026")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestUniverseBuildCommand(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	page := `<html><body><table class="wikitable">
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th></tr>
<tr><td>AAPL</td><td>Apple Inc.</td><td>Information Technology</td><td>Technology Hardware</td></tr>
<tr><td>KO</td><td>Coca-Cola Company</td><td>Consumer Staples</td><td>Soft Drinks</td></tr>
</table></body></html>`
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer src.Close()

	out := filepath.Join(dir, "built.json")
	stdout, err := run(t, "universe", "build", "--config", cfg, "--source-url", src.URL, "--target", "5", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 stocks")

	stocks, err := universe.Load(out)
	require.NoError(t, err)
	assert.Len(t, stocks, 2)
}

func TestMissingUniverseFails(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "universe.json")))

	_, err := run(t, "validate", "--config", cfg)
	assert.Error(t, err)
}
