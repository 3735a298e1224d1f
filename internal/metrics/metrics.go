// Package metrics holds the Prometheus collectors for Tickle
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Tickle collectors on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	ProviderAttempts *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	BatchTickers     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	Guesses          *prometheus.CounterVec
	Sessions         *prometheus.CounterVec
}

// NewRegistry creates and registers every collector
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickle_provider_attempts_total",
				Help: "Close-price fetch attempts by provider and result",
			},
			[]string{"provider", "result"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickle_provider_breaker_state",
				Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
			},
			[]string{"provider"},
		),

		BatchTickers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickle_batch_tickers_total",
				Help: "Tickers processed by the snapshot batch by outcome",
			},
			[]string{"outcome"},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickle_batch_duration_seconds",
				Help:    "Wall time of a full snapshot batch",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
			},
		),

		Guesses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickle_guesses_total",
				Help: "Guesses submitted by result",
			},
			[]string{"result"},
		),

		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickle_sessions_total",
				Help: "Game sessions by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(
		r.ProviderAttempts,
		r.BreakerState,
		r.BatchTickers,
		r.BatchDuration,
		r.Guesses,
		r.Sessions,
	)

	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values for a node_exporter textfile collector
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
