package surrealdb

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// maxCBORDocBytes is the maximum encoded document size for SurrealDB's CBOR wire format.
const maxCBORDocBytes = 10_000_000

// LogoStore implements interfaces.LogoStore using SurrealDB.
type LogoStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

type logoRecord struct {
	Ticker    string    `json:"ticker"`
	Size      int       `json:"size"`
	Data      string    `json:"data"` // base64-encoded
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLogoStore creates a new LogoStore.
func NewLogoStore(db *surrealdb.DB, logger *common.Logger) *LogoStore {
	return &LogoStore{db: db, logger: logger}
}

func logoID(ticker string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableLogo, ticker)
}

func (s *LogoStore) HasLogo(ctx context.Context, ticker string) bool {
	record, err := surrealdb.Select[logoRecord](ctx, s.db, logoID(ticker))
	return err == nil && record != nil && record.Size > 0
}

func (s *LogoStore) GetLogo(ctx context.Context, ticker string) ([]byte, error) {
	record, err := surrealdb.Select[logoRecord](ctx, s.db, logoID(ticker))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get logo: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("logo for '%s': %w", ticker, models.ErrNotFound)
	}
	data, err := base64.StdEncoding.DecodeString(record.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo data: %w", err)
	}
	return data, nil
}

func (s *LogoStore) SaveLogo(ctx context.Context, ticker string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty logo for '%s'", ticker)
	}
	encodedSize := base64.StdEncoding.EncodedLen(len(data))
	if encodedSize > maxCBORDocBytes {
		return fmt.Errorf("logo for '%s' too large: %d bytes encoded (limit %d)", ticker, encodedSize, maxCBORDocBytes)
	}

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{
		"rid": logoID(ticker),
		"data": logoRecord{
			Ticker:    ticker,
			Size:      len(data),
			Data:      base64.StdEncoding.EncodeToString(data),
			UpdatedAt: time.Now().UTC(),
		},
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save logo: %w", err)
	}
	s.logger.Debug().Str("ticker", ticker).Int("bytes", len(data)).Msg("Logo cached")
	return nil
}

// Compile-time check
var _ interfaces.LogoStore = (*LogoStore)(nil)
