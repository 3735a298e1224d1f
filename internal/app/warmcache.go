package app

import (
	"context"
	"os"
	"time"
)

// warmCache makes sure today's answer snapshot exists so the first game
// session does not wait on a provider round trip.
func warmCache(ctx context.Context, a *App) {
	if os.Getenv("TICKLE_WARM_CACHE") == "off" {
		a.Logger.Info().Msg("Warm cache: disabled via TICKLE_WARM_CACHE=off")
		return
	}

	start := time.Now()
	update, err := a.RunDaily(ctx, start, false)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Warm cache: daily snapshot unavailable")
		return
	}

	a.Logger.Info().
		Str("day", update.Day).
		Str("ticker", update.Ticker).
		Bool("rebuilt", update.Rebuilt).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}

// StartWarmCache warms today's snapshot in the background. The scheduler
// does the same on its first pass, so this is skipped when it is enabled.
func (a *App) StartWarmCache() {
	if a.Config.Scheduler.Enabled {
		return
	}
	go warmCache(context.Background(), a)
}
