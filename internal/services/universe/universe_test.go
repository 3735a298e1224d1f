package universe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeshavPeri/tickle/internal/models"
)

func sampleStocks() []models.Stock {
	return []models.Stock{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Information Technology", Industry: "Technology Hardware", Dividend: true},
		{Ticker: "MSFT", Name: "Microsoft", Sector: "Information Technology", Industry: "Systems Software", Dividend: true},
		{Ticker: "KO", Name: "Coca-Cola Company", Sector: "Consumer Staples", Industry: "Soft Drinks", Dividend: true},
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "universe.json")
	require.NoError(t, Save(path, sampleStocks()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleStocks(), got)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = Load(bad)
	require.ErrorAs(t, err, &verr)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0644))
	_, err = Load(empty)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "empty")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	stocks := []models.Stock{
		{Ticker: "AAPL", Name: "Apple", Sector: "Tech", Industry: "Hardware"},
		{Ticker: "AAPL", Name: "Apple again", Sector: "Tech", Industry: "Hardware"},
		{Ticker: "brk.b", Name: "Berkshire", Sector: "Financials", Industry: "Insurance"},
		{Ticker: "XYZ", Name: "", Sector: "", Industry: "Misc"},
	}
	err := Validate(stocks)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 4)
}

func TestLookup(t *testing.T) {
	l := NewLookup(sampleStocks())
	s, ok := l.Find("KO")
	assert.True(t, ok)
	assert.Equal(t, "Coca-Cola Company", s.Name)
	_, ok = l.Find("PEP")
	assert.False(t, ok)
}

// --- ValidateData ---

type memSnapshots map[string]*models.Snapshot

func (m memSnapshots) GetSnapshot(_ context.Context, ticker string) (*models.Snapshot, error) {
	if s, ok := m[ticker]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}
func (m memSnapshots) SaveSnapshot(_ context.Context, ticker string, s *models.Snapshot) error {
	m[ticker] = s
	return nil
}
func (m memSnapshots) IsFresh(_ context.Context, ticker, day string) (bool, error) { return false, nil }
func (m memSnapshots) ListTickers(_ context.Context) ([]string, error)             { return nil, nil }

func TestValidateData_OK(t *testing.T) {
	snaps := memSnapshots{
		"AAPL": {SixMonth: []float64{1, 2}, LastClose: 2},
	}
	mapping := map[string]string{"2024-03-01": "AAPL", "2024-03-02": "AAPL"}
	assert.NoError(t, ValidateData(context.Background(), sampleStocks(), mapping, snaps))
}

func TestValidateData_Problems(t *testing.T) {
	snaps := memSnapshots{
		"AAPL": {SixMonth: nil, LastClose: 2, OneMonth: []float64{5}},
	}
	mapping := map[string]string{
		"2024-03-01": "AAPL",
		"2024-03-02": "NOPE",
		"03/03/2024": "MSFT",
	}
	err := ValidateData(context.Background(), sampleStocks(), mapping, snaps)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	joined := err.Error()
	assert.Contains(t, joined, "unknown ticker NOPE")
	assert.Contains(t, joined, "not YYYY-MM-DD")
	assert.Contains(t, joined, "missing snapshot for MSFT")
	assert.Contains(t, joined, "missing 6m array")
	assert.Contains(t, joined, "single point")
}
