package app

import (
	"context"
	"errors"
	"time"

	"github.com/KeshavPeri/tickle/internal/services/batch"
)

// StartScheduler runs the daily refresh loop in the background until
// StopScheduler is called. It does nothing when the scheduler is disabled.
func (a *App) StartScheduler() {
	if !a.Config.Scheduler.Enabled || a.schedulerCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.schedulerDone = make(chan struct{})

	interval := a.Config.Scheduler.GetInterval()
	a.Logger.Info().Dur("interval", interval).Msg("Refresh scheduler: started")

	go func() {
		defer close(a.schedulerDone)
		startRefreshScheduler(ctx, a, interval)
	}()
}

// StopScheduler cancels the refresh loop and waits for the current pass to notice.
func (a *App) StopScheduler() {
	if a.schedulerCancel == nil {
		return
	}
	a.schedulerCancel()
	<-a.schedulerDone
	a.schedulerCancel = nil
}

// startRefreshScheduler refreshes the daily answer and then every snapshot on
// a fixed interval. The first pass runs immediately.
func startRefreshScheduler(ctx context.Context, a *App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh(ctx, a)
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			refresh(ctx, a)
		}
	}
}

func refresh(ctx context.Context, a *App) {
	start := time.Now()

	update, err := a.RunDaily(ctx, start, false)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Refresh: daily update failed")
	} else {
		a.Logger.Info().
			Str("day", update.Day).
			Str("ticker", update.Ticker).
			Bool("rebuilt", update.Rebuilt).
			Msg("Refresh: daily answer ready")
	}

	result, err := a.RunBatch(ctx, false)
	if err != nil && !errors.Is(err, batch.ErrTickersFailed) {
		a.Logger.Warn().Err(err).Msg("Refresh: batch failed")
		return
	}

	a.Logger.Info().
		Int64("built", result.Built).
		Int64("skipped", result.Skipped).
		Int64("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh: complete")
}
