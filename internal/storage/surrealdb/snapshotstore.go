package surrealdb

import (
	"context"
	"fmt"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SnapshotStore implements interfaces.SnapshotStore using SurrealDB.
type SnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *surrealdb.DB, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

func snapshotID(ticker string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableSnapshot, ticker)
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, ticker string) (*models.Snapshot, error) {
	snap, err := surrealdb.Select[models.Snapshot](ctx, s.db, snapshotID(ticker))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("snapshot for '%s': %w", ticker, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("snapshot for '%s': %w", ticker, models.ErrNotFound)
	}
	snap.Normalize()
	return snap, nil
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, ticker string, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot for '%s'", ticker)
	}
	record := *snap
	record.Ticker = ticker
	record.Normalize()

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": snapshotID(ticker), "data": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Snapshot](ctx, s.db, sql, vars)
		if err == nil {
			s.logger.Debug().Str("ticker", ticker).Str("source", snap.Source).Msg("Snapshot saved")
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save snapshot after retries: %w", lastErr)
}

type builtDateRow struct {
	BuiltDateUTC string `json:"builtDateUTC"`
}

func (s *SnapshotStore) IsFresh(ctx context.Context, ticker, day string) (bool, error) {
	sql := "SELECT builtDateUTC FROM $rid"
	results, err := surrealdb.Query[[]builtDateRow](ctx, s.db, sql, map[string]any{"rid": snapshotID(ticker)})
	if err != nil {
		return false, fmt.Errorf("failed to read build date: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, nil
	}
	built := (*results)[0].Result[0].BuiltDateUTC
	return built != "" && built == day, nil
}

type tickerRow struct {
	Ticker string `json:"ticker"`
}

func (s *SnapshotStore) ListTickers(ctx context.Context) ([]string, error) {
	sql := "SELECT ticker FROM snapshot ORDER BY ticker"
	results, err := surrealdb.Query[[]tickerRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var tickers []string
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			tickers = append(tickers, row.Ticker)
		}
	}
	return tickers, nil
}

// Compile-time check
var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
