package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DailyStore implements interfaces.DailyMappingStore using SurrealDB.
// Entries are created, never updated.
type DailyStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

type dailyRecord struct {
	Day        string    `json:"day"`
	Ticker     string    `json:"ticker"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewDailyStore creates a new DailyStore.
func NewDailyStore(db *surrealdb.DB, logger *common.Logger) *DailyStore {
	return &DailyStore{db: db, logger: logger}
}

func dailyID(day string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableDaily, day)
}

func (s *DailyStore) GetDaily(ctx context.Context, day string) (string, error) {
	record, err := surrealdb.Select[dailyRecord](ctx, s.db, dailyID(day))
	if err != nil && !isNotFoundError(err) {
		return "", fmt.Errorf("failed to select daily entry: %w", err)
	}
	if record == nil || record.Ticker == "" {
		return "", fmt.Errorf("daily entry for %s: %w", day, models.ErrNotFound)
	}
	return record.Ticker, nil
}

// RecordDaily issues a CREATE, which fails when the record exists, then reads
// back whatever is stored.
func (s *DailyStore) RecordDaily(ctx context.Context, day, ticker string) (string, error) {
	sql := "CREATE $rid CONTENT $data"
	vars := map[string]any{
		"rid":  dailyID(day),
		"data": dailyRecord{Day: day, Ticker: ticker, RecordedAt: time.Now().UTC()},
	}
	_, createErr := surrealdb.Query[[]dailyRecord](ctx, s.db, sql, vars)

	stored, err := s.GetDaily(ctx, day)
	if err != nil {
		if createErr != nil {
			return "", fmt.Errorf("failed to record daily entry: %w", createErr)
		}
		return "", err
	}
	if createErr == nil {
		s.logger.Info().Str("day", day).Str("ticker", stored).Msg("Daily ticker recorded")
	}
	return stored, nil
}

func (s *DailyStore) AllDaily(ctx context.Context) (map[string]string, error) {
	sql := "SELECT day, ticker, recorded_at FROM daily_mapping"
	results, err := surrealdb.Query[[]dailyRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily mapping: %w", err)
	}
	mapping := make(map[string]string)
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			mapping[row.Day] = row.Ticker
		}
	}
	return mapping, nil
}

// Compile-time check
var _ interfaces.DailyMappingStore = (*DailyStore)(nil)
