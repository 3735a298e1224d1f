package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/metrics"
	"github.com/KeshavPeri/tickle/internal/models"
)

// stubProvider is a scripted CloseProvider
type stubProvider struct {
	name  string
	calls int
	fetch func(ticker string) ([]models.DailyClose, string, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchCloses(_ context.Context, ticker string) ([]models.DailyClose, string, error) {
	s.calls++
	return s.fetch(ticker)
}

func series(n int) []models.DailyClose {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.DailyClose, n)
	for i := range out {
		out[i] = models.DailyClose{Date: start.AddDate(0, 0, i), Close: 10 + float64(i)}
	}
	return out
}

func failing(name string, reason models.ProviderReason) *stubProvider {
	return &stubProvider{name: name, fetch: func(ticker string) ([]models.DailyClose, string, error) {
		return nil, "", &models.ProviderError{Provider: name, Reason: reason, Symbol: ticker}
	}}
}

func succeeding(name string, n int) *stubProvider {
	return &stubProvider{name: name, fetch: func(ticker string) ([]models.DailyClose, string, error) {
		return series(n), ticker + ".X", nil
	}}
}

var jan1 = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

func TestNewChain_NoProviders(t *testing.T) {
	if _, err := NewChain(nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	first := failing("stooq", models.ReasonRateLimited)
	second := succeeding("eodhd", 100)
	third := succeeding("yahoo", 100)

	chain, err := NewChain([]interfaces.CloseProvider{first, second, third})
	if err != nil {
		t.Fatal(err)
	}

	res := chain.Resolve(context.Background(), "AAPL", jan1)
	if res.Provenance != "eodhd" {
		t.Errorf("Provenance = %s, want eodhd", res.Provenance)
	}
	if res.SymbolUsed != "AAPL.X" {
		t.Errorf("SymbolUsed = %s, want AAPL.X", res.SymbolUsed)
	}
	if len(res.Closes) != 100 {
		t.Errorf("len(Closes) = %d, want 100", len(res.Closes))
	}
	if third.calls != 0 {
		t.Errorf("providers after a success must not be called")
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Reason != models.ReasonRateLimited || res.Attempts[1].Reason != "" {
		t.Errorf("unexpected attempts: %+v", res.Attempts)
	}
}

func TestResolve_AllNoDataIsReproducible(t *testing.T) {
	build := func() *Chain {
		chain, err := NewChain([]interfaces.CloseProvider{
			failing("stooq", models.ReasonNoData),
			failing("eodhd", models.ReasonNoData),
		})
		if err != nil {
			t.Fatal(err)
		}
		return chain
	}

	a := build().Resolve(context.Background(), "ZZZZ", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := build().Resolve(context.Background(), "ZZZZ", time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC))

	if !a.Synthetic() || !b.Synthetic() {
		t.Fatalf("expected synthetic provenance, got %s and %s", a.Provenance, b.Provenance)
	}

	ja, _ := json.Marshal(models.Closes(a.Closes))
	jb, _ := json.Marshal(models.Closes(b.Closes))
	if !bytes.Equal(ja, jb) {
		t.Error("synthetic series differ between invocations")
	}
}

func TestResolve_NonProviderErrorIsTransport(t *testing.T) {
	bad := &stubProvider{name: "odd", fetch: func(string) ([]models.DailyClose, string, error) {
		return nil, "", errors.New("unexpected")
	}}
	chain, _ := NewChain([]interfaces.CloseProvider{bad})

	res := chain.Resolve(context.Background(), "AAPL", jan1)
	if res.Attempts[0].Reason != models.ReasonTransport {
		t.Errorf("Reason = %s, want TRANSPORT", res.Attempts[0].Reason)
	}
	if !res.Synthetic() {
		t.Error("expected synthetic fallback")
	}
}

func TestResolve_DegenerateSeriesIsNoData(t *testing.T) {
	one := &stubProvider{name: "thin", fetch: func(string) ([]models.DailyClose, string, error) {
		return series(1), "X", nil
	}}
	next := succeeding("good", 60)
	chain, _ := NewChain([]interfaces.CloseProvider{one, next})

	res := chain.Resolve(context.Background(), "AAPL", jan1)
	if res.Provenance != "good" {
		t.Errorf("Provenance = %s, want good", res.Provenance)
	}
	if res.Attempts[0].Reason != models.ReasonNoData {
		t.Errorf("Reason = %s, want NO_DATA", res.Attempts[0].Reason)
	}
}

func TestResolve_BreakerSkipsUnhealthyProvider(t *testing.T) {
	flaky := failing("flaky", models.ReasonTransport)
	backup := succeeding("backup", 60)
	reg := metrics.NewRegistry()

	chain, _ := NewChain([]interfaces.CloseProvider{flaky, backup}, WithBreaker(2, time.Hour), WithChainMetrics(reg))

	for i := 0; i < 5; i++ {
		chain.Resolve(context.Background(), "AAPL", jan1)
	}

	if flaky.calls != 2 {
		t.Errorf("flaky provider called %d times, want 2 before the breaker opens", flaky.calls)
	}
	if got := testutil.ToFloat64(reg.ProviderAttempts.WithLabelValues("flaky", "RATE_LIMITED")); got != 3 {
		t.Errorf("RATE_LIMITED attempts = %v, want 3", got)
	}
	if got := testutil.ToFloat64(reg.ProviderAttempts.WithLabelValues("backup", "ok")); got != 5 {
		t.Errorf("backup ok attempts = %v, want 5", got)
	}
}

func TestResolve_NoDataDoesNotTripBreaker(t *testing.T) {
	empty := failing("empty", models.ReasonNoData)
	chain, _ := NewChain([]interfaces.CloseProvider{empty}, WithBreaker(2, time.Hour))

	for i := 0; i < 5; i++ {
		chain.Resolve(context.Background(), "AAPL", jan1)
	}
	if empty.calls != 5 {
		t.Errorf("NO_DATA provider called %d times, want 5", empty.calls)
	}
}

func TestChain_Providers(t *testing.T) {
	chain, _ := NewChain([]interfaces.CloseProvider{succeeding("a", 5), succeeding("b", 5)})
	got := chain.Providers()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Providers = %v", got)
	}
}
