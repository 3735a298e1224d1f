package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Table names.
const (
	tableSnapshot = "snapshot"
	tableDaily    = "daily_mapping"
	tableLogo     = "logo"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	snapshotStore *SnapshotStore
	dailyStore    *DailyStore
	logoStore     *LogoStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()
	cfg := config.Storage.SurrealDB

	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManagerWithDB(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// newManagerWithDB defines the tables on an already selected database.
func newManagerWithDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	// SurrealDB v3 errors on querying non-existent tables
	for _, table := range []string{tableSnapshot, tableDaily, tableLogo} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	return &Manager{
		db:            db,
		logger:        logger,
		snapshotStore: NewSnapshotStore(db, logger),
		dailyStore:    NewDailyStore(db, logger),
		logoStore:     NewLogoStore(db, logger),
	}, nil
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.snapshotStore
}

func (m *Manager) DailyMappingStore() interfaces.DailyMappingStore {
	return m.dailyStore
}

func (m *Manager) LogoStore() interfaces.LogoStore {
	return m.logoStore
}

func (m *Manager) Backend() string {
	return "surrealdb"
}

func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
