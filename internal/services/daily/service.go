// Package daily picks the answer ticker for a calendar day and keeps its
// snapshot current.
package daily

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

const millisPerDay = 86_400_000

// ErrEmptyUniverse is returned when no ticker can be selected.
var ErrEmptyUniverse = errors.New("universe is empty")

// Service selects daily tickers and refreshes their snapshots.
type Service struct {
	mapping   interfaces.DailyMappingStore
	snapshots interfaces.SnapshotStore
	builder   interfaces.SnapshotBuilder
	logger    *common.Logger
}

// NewService creates a daily service. builder may be nil when only selection
// is needed.
func NewService(mapping interfaces.DailyMappingStore, snapshots interfaces.SnapshotStore, builder interfaces.SnapshotBuilder, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		mapping:   mapping,
		snapshots: snapshots,
		builder:   builder,
		logger:    logger,
	}
}

// FallbackIndex is floor(epochMillis(UTC midnight of date) / 86400000) mod n.
func FallbackIndex(date time.Time, n int) int {
	if n <= 0 {
		return 0
	}
	days := common.UTCMidnight(date).UnixMilli() / millisPerDay
	idx := days % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

// SelectTicker returns the mapped ticker for date, recording the fallback
// choice when the day has no entry yet. An existing entry is returned
// verbatim and the mapping is not touched.
func (s *Service) SelectTicker(ctx context.Context, universe []models.Stock, date time.Time) (string, error) {
	day := common.DayKey(date)

	ticker, err := s.mapping.GetDaily(ctx, day)
	if err == nil {
		return ticker, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("failed to read daily mapping: %w", err)
	}

	if len(universe) == 0 {
		return "", ErrEmptyUniverse
	}
	candidate := universe[FallbackIndex(date, len(universe))].Ticker

	stored, err := s.mapping.RecordDaily(ctx, day, candidate)
	if err != nil {
		return "", fmt.Errorf("failed to record daily mapping: %w", err)
	}
	if stored != candidate {
		s.logger.Info().Str("day", day).Str("ticker", stored).Msg("Daily entry recorded concurrently, using existing")
	}
	return stored, nil
}

// UpdateResult describes one daily update.
type UpdateResult struct {
	Day      string
	Ticker   string
	Rebuilt  bool
	Snapshot *models.Snapshot
}

// Update selects the day's ticker and builds its snapshot unless it is
// already fresh. force rebuilds regardless.
func (s *Service) Update(ctx context.Context, universe []models.Stock, date time.Time, force bool) (*UpdateResult, error) {
	ticker, err := s.SelectTicker(ctx, universe, date)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{Day: common.DayKey(date), Ticker: ticker}

	stock, ok := findStock(universe, ticker)
	if !ok {
		verr := &models.ValidationError{Source: "daily mapping"}
		verr.Add("%s maps to %s which is not in the universe", res.Day, ticker)
		return res, verr
	}

	if !force {
		fresh, err := s.snapshots.IsFresh(ctx, ticker, res.Day)
		if err != nil {
			s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Freshness check failed, rebuilding")
		}
		if fresh {
			snap, err := s.snapshots.GetSnapshot(ctx, ticker)
			if err == nil {
				res.Snapshot = snap
				s.logger.Info().Str("day", res.Day).Str("ticker", ticker).Msg("Daily snapshot already fresh")
				return res, nil
			}
			s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Fresh snapshot unreadable, rebuilding")
		}
	}

	if s.builder == nil {
		return res, errors.New("no snapshot builder configured")
	}
	snap, err := s.builder.Build(ctx, stock, date)
	if err != nil {
		return res, fmt.Errorf("failed to build snapshot for %s: %w", ticker, err)
	}
	if err := s.snapshots.SaveSnapshot(ctx, ticker, snap); err != nil {
		return res, fmt.Errorf("failed to save snapshot for %s: %w", ticker, err)
	}

	res.Rebuilt = true
	res.Snapshot = snap
	s.logger.Info().
		Str("day", res.Day).
		Str("ticker", ticker).
		Str("source", snap.Source).
		Msg("Daily snapshot updated")
	return res, nil
}

// Today resolves the ticker mapped for now without building anything.
func (s *Service) Today(ctx context.Context, universe []models.Stock, now time.Time) (models.Stock, error) {
	ticker, err := s.SelectTicker(ctx, universe, now)
	if err != nil {
		return models.Stock{}, err
	}
	stock, ok := findStock(universe, ticker)
	if !ok {
		return models.Stock{}, fmt.Errorf("daily ticker %s: %w", ticker, models.ErrNotFound)
	}
	return stock, nil
}

func findStock(universe []models.Stock, ticker string) (models.Stock, bool) {
	for _, s := range universe {
		if s.Ticker == ticker {
			return s, true
		}
	}
	return models.Stock{}, false
}
