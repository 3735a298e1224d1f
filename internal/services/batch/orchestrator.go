// Package batch builds snapshots for the whole ticker universe with a bounded
// worker pool, skipping tickers whose snapshot is already fresh.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/metrics"
	"github.com/KeshavPeri/tickle/internal/models"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 6

// ErrTickersFailed is returned by Run when at least one ticker failed.
var ErrTickersFailed = errors.New("one or more tickers failed")

// Outcome labels.
const (
	OutcomeBuilt   = "built"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Result summarises a batch pass. Done counts built plus skipped tickers.
type Result struct {
	RunID    string
	Total    int
	Built    int64
	Skipped  int64
	Done     int64
	Failed   int64
	Failures map[string]string
	Elapsed  time.Duration
}

// Orchestrator runs snapshot builds across a universe.
type Orchestrator struct {
	builder     interfaces.SnapshotBuilder
	snapshots   interfaces.SnapshotStore
	sink        interfaces.BatchEventSink
	metrics     *metrics.Registry
	logger      *common.Logger
	concurrency int
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithEventSink streams per-ticker progress events.
func WithEventSink(sink interfaces.BatchEventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMetrics records outcomes and duration.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides time.Now, which decides the freshness day.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(builder interfaces.SnapshotBuilder, snapshots interfaces.SnapshotStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder:     builder,
		snapshots:   snapshots,
		logger:      common.NewSilentLogger(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the shared state of one pass.
type run struct {
	id      string
	stocks  []models.Stock
	day     string
	now     time.Time
	force   bool
	cursor  atomic.Int64
	built   atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64

	mu       sync.Mutex
	failures map[string]string
}

// Run processes every stock once. Workers pull the next index from a shared
// cursor. A failing ticker is counted and never stops its siblings. The
// returned error wraps ErrTickersFailed when any ticker failed; the Result is
// always complete.
func (o *Orchestrator) Run(ctx context.Context, stocks []models.Stock, force bool) (*Result, error) {
	start := time.Now()
	now := o.now()
	r := &run{
		id:       uuid.New().String(),
		stocks:   stocks,
		day:      common.DayKey(now),
		now:      now,
		force:    force,
		failures: make(map[string]string),
	}

	workers := o.concurrency
	if workers > len(stocks) {
		workers = len(stocks)
	}

	o.logger.Info().
		Str("run_id", r.id).
		Int("tickers", len(stocks)).
		Int("workers", workers).
		Bool("force", force).
		Str("day", r.day).
		Msg("Batch started")
	o.emit(r, models.BatchEvent{Type: "started"})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(r.cursor.Add(1) - 1)
				if idx >= len(r.stocks) {
					return
				}
				o.process(ctx, r, r.stocks[idx])
			}
		}()
	}
	wg.Wait()

	res := &Result{
		RunID:    r.id,
		Total:    len(stocks),
		Built:    r.built.Load(),
		Skipped:  r.skipped.Load(),
		Failed:   r.failed.Load(),
		Failures: r.failures,
		Elapsed:  time.Since(start),
	}
	res.Done = res.Built + res.Skipped

	if o.metrics != nil {
		o.metrics.BatchDuration.Observe(res.Elapsed.Seconds())
	}
	o.emit(r, models.BatchEvent{Type: "finished"})

	o.logger.Info().
		Str("run_id", r.id).
		Int64("done", res.Done).
		Int64("built", res.Built).
		Int64("skipped", res.Skipped).
		Int64("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("Batch finished")

	if res.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d (%s)", ErrTickersFailed, res.Failed, res.Total, res.FailedTickersSummary())
	}
	return res, nil
}

// process owns one ticker for its whole lifetime.
func (o *Orchestrator) process(ctx context.Context, r *run, stock models.Stock) {
	outcome, source, err := o.processSafely(ctx, r, stock)

	switch outcome {
	case OutcomeBuilt:
		r.built.Add(1)
	case OutcomeSkipped:
		r.skipped.Add(1)
	default:
		r.failed.Add(1)
		r.mu.Lock()
		r.failures[stock.Ticker] = err.Error()
		r.mu.Unlock()
		o.logger.Warn().Str("run_id", r.id).Str("ticker", stock.Ticker).Err(err).Msg("Ticker failed")
	}

	if o.metrics != nil {
		o.metrics.BatchTickers.WithLabelValues(outcome).Inc()
	}

	ev := models.BatchEvent{Type: "ticker", Ticker: stock.Ticker, Outcome: outcome, Source: source}
	if err != nil {
		ev.Error = err.Error()
	}
	o.emit(r, ev)
}

// processSafely converts a panic into a failure for this ticker only.
func (o *Orchestrator) processSafely(ctx context.Context, r *run, stock models.Stock) (outcome, source string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error().
				Str("ticker", stock.Ticker).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic while building snapshot")
			outcome, source, err = OutcomeFailed, "", fmt.Errorf("panic: %v", rec)
		}
	}()

	if !r.force {
		fresh, ferr := o.snapshots.IsFresh(ctx, stock.Ticker, r.day)
		if ferr != nil {
			o.logger.Debug().Str("ticker", stock.Ticker).Err(ferr).Msg("Freshness check failed, rebuilding")
		}
		if fresh {
			return OutcomeSkipped, "", nil
		}
	}

	snap, err := o.builder.Build(ctx, stock, r.now)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("build: %w", err)
	}
	if err := o.snapshots.SaveSnapshot(ctx, stock.Ticker, snap); err != nil {
		return OutcomeFailed, snap.Source, fmt.Errorf("save: %w", err)
	}

	o.logger.Debug().Str("ticker", stock.Ticker).Str("source", snap.Source).Msg("Snapshot built")
	return OutcomeBuilt, snap.Source, nil
}

func (o *Orchestrator) emit(r *run, ev models.BatchEvent) {
	if o.sink == nil {
		return
	}
	ev.RunID = r.id
	ev.Total = len(r.stocks)
	ev.Done = r.built.Load() + r.skipped.Load()
	ev.Skipped = r.skipped.Load()
	ev.Failed = r.failed.Load()
	ev.Timestamp = time.Now().UTC()
	o.sink.Broadcast(ev)
}

// FailedTickers returns the failed tickers in sorted order.
func (r *Result) FailedTickers() []string {
	out := make([]string, 0, len(r.Failures))
	for t := range r.Failures {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FailedTickersSummary lists up to ten failed tickers.
func (r *Result) FailedTickersSummary() string {
	tickers := r.FailedTickers()
	if len(tickers) > 10 {
		return fmt.Sprintf("%v and %d more", tickers[:10], len(tickers)-10)
	}
	return fmt.Sprintf("%v", tickers)
}
