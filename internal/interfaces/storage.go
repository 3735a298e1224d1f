// Package interfaces defines service contracts for Tickle
package interfaces

import (
	"context"

	"github.com/KeshavPeri/tickle/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	SnapshotStore() SnapshotStore
	DailyMappingStore() DailyMappingStore
	LogoStore() LogoStore

	// Backend names the active backend ("file", "surrealdb", "redis").
	Backend() string

	Close() error
}

// SnapshotStore persists one snapshot per ticker.
type SnapshotStore interface {
	// GetSnapshot returns models.ErrNotFound when no snapshot exists.
	GetSnapshot(ctx context.Context, ticker string) (*models.Snapshot, error)
	// SaveSnapshot unconditionally overwrites. Readers never observe a partial write.
	SaveSnapshot(ctx context.Context, ticker string, snap *models.Snapshot) error
	// IsFresh reads only the embedded build date, comparing it to day (YYYY-MM-DD).
	IsFresh(ctx context.Context, ticker, day string) (bool, error)
	ListTickers(ctx context.Context) ([]string, error)
}

// DailyMappingStore is the append-only date -> ticker mapping.
type DailyMappingStore interface {
	// GetDaily returns models.ErrNotFound when the day has no entry.
	GetDaily(ctx context.Context, day string) (string, error)
	// RecordDaily stores ticker for day unless an entry already exists, and
	// returns whichever ticker is stored after the call.
	RecordDaily(ctx context.Context, day, ticker string) (string, error)
	// AllDaily returns the full mapping.
	AllDaily(ctx context.Context) (map[string]string, error)
}

// LogoStore holds cached logo images keyed by ticker.
type LogoStore interface {
	HasLogo(ctx context.Context, ticker string) bool
	GetLogo(ctx context.Context, ticker string) ([]byte, error)
	SaveLogo(ctx context.Context, ticker string, data []byte) error
}
