// Package storage selects and opens the configured storage backend.
package storage

import (
	"fmt"
	"strings"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/storage/marketfs"
	"github.com/KeshavPeri/tickle/internal/storage/redisstore"
	"github.com/KeshavPeri/tickle/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
	BackendRedis     = "redis"
)

// NewStorageManager creates a storage manager based on the configuration.
// Supported backends: "file" (default), "surrealdb", "redis".
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := strings.ToLower(config.Storage.Backend)
	if backend == "" {
		backend = BackendFile
	}

	var (
		mgr interfaces.StorageManager
		err error
	)
	switch backend {
	case BackendFile:
		mgr, err = marketfs.NewStore(logger, config.Data.Snapshots, config.Data.Daily, config.Data.Logos)

	case BackendSurrealDB:
		mgr, err = surrealdb.NewManager(logger, config)

	case BackendRedis:
		mgr, err = redisstore.NewManager(logger, config)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb, redis)", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", backend, err)
	}
	return mgr, nil
}
