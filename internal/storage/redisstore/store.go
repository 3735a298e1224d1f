// Package redisstore implements the storage manager on Redis. Snapshots are
// JSON strings, build dates and the daily mapping are hashes, logos are raw
// byte strings.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

// Store implements interfaces.StorageManager on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
	logger *common.Logger
}

// NewManager connects to Redis and verifies the connection.
func NewManager(logger *common.Logger, config *common.Config) (*Store, error) {
	cfg := config.Storage.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Str("prefix", cfg.Prefix).Msg("Redis storage manager initialized")
	return NewStore(client, cfg.Prefix, logger), nil
}

// NewStore wraps an existing client.
func NewStore(client *redis.Client, prefix string, logger *common.Logger) *Store {
	if prefix == "" {
		prefix = "tickle"
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) SnapshotStore() interfaces.SnapshotStore         { return &snapshotStorage{s} }
func (s *Store) DailyMappingStore() interfaces.DailyMappingStore { return &dailyStorage{s} }
func (s *Store) LogoStore() interfaces.LogoStore                 { return &logoStorage{s} }
func (s *Store) Backend() string                                 { return "redis" }

func (s *Store) Close() error {
	return s.client.Close()
}

// --- SnapshotStore ---

type snapshotStorage struct {
	s *Store
}

func (ss *snapshotStorage) GetSnapshot(ctx context.Context, ticker string) (*models.Snapshot, error) {
	raw, err := ss.s.client.Get(ctx, ss.s.key("snapshot", ticker)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot for '%s': %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for '%s': %w", ticker, err)
	}
	if snap.Ticker == "" {
		snap.Ticker = ticker
	}
	snap.Normalize()
	return &snap, nil
}

// SaveSnapshot writes the payload, build date and index in one MULTI/EXEC
// so a failed save leaves none of them behind.
func (ss *snapshotStorage) SaveSnapshot(ctx context.Context, ticker string, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot for '%s'", ticker)
	}
	snap.Normalize()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = ss.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ss.s.key("snapshot", ticker), string(payload), 0)
		pipe.HSet(ctx, ss.s.key("built"), ticker, snap.BuiltDateUTC)
		pipe.SAdd(ctx, ss.s.key("snapshots"), ticker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	ss.s.logger.Debug().Str("ticker", ticker).Str("source", snap.Source).Msg("Snapshot saved")
	return nil
}

func (ss *snapshotStorage) IsFresh(ctx context.Context, ticker, day string) (bool, error) {
	built, err := ss.s.client.HGet(ctx, ss.s.key("built"), ticker).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read build date: %w", err)
	}
	return built != "" && built == day, nil
}

func (ss *snapshotStorage) ListTickers(ctx context.Context) ([]string, error) {
	tickers, err := ss.s.client.SMembers(ctx, ss.s.key("snapshots")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Strings(tickers)
	return tickers, nil
}

// --- DailyMappingStore ---

type dailyStorage struct {
	s *Store
}

func (ds *dailyStorage) GetDaily(ctx context.Context, day string) (string, error) {
	ticker, err := ds.s.client.HGet(ctx, ds.s.key("daily"), day).Result()
	if errors.Is(err, redis.Nil) || (err == nil && ticker == "") {
		return "", fmt.Errorf("daily entry for %s: %w", day, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get daily entry: %w", err)
	}
	return ticker, nil
}

// RecordDaily relies on HSETNX so concurrent writers agree on one entry.
func (ds *dailyStorage) RecordDaily(ctx context.Context, day, ticker string) (string, error) {
	created, err := ds.s.client.HSetNX(ctx, ds.s.key("daily"), day, ticker).Result()
	if err != nil {
		return "", fmt.Errorf("failed to record daily entry: %w", err)
	}
	if created {
		ds.s.logger.Info().Str("day", day).Str("ticker", ticker).Msg("Daily ticker recorded")
		return ticker, nil
	}
	return ds.GetDaily(ctx, day)
}

func (ds *dailyStorage) AllDaily(ctx context.Context) (map[string]string, error) {
	mapping, err := ds.s.client.HGetAll(ctx, ds.s.key("daily")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list daily mapping: %w", err)
	}
	return mapping, nil
}

// --- LogoStore ---

type logoStorage struct {
	s *Store
}

func (ls *logoStorage) HasLogo(ctx context.Context, ticker string) bool {
	n, err := ls.s.client.Exists(ctx, ls.s.key("logo", ticker)).Result()
	return err == nil && n > 0
}

func (ls *logoStorage) GetLogo(ctx context.Context, ticker string) ([]byte, error) {
	data, err := ls.s.client.Get(ctx, ls.s.key("logo", ticker)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("logo for '%s': %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get logo: %w", err)
	}
	return data, nil
}

func (ls *logoStorage) SaveLogo(ctx context.Context, ticker string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty logo for '%s'", ticker)
	}
	if err := ls.s.client.Set(ctx, ls.s.key("logo", ticker), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save logo: %w", err)
	}
	ls.s.logger.Debug().Str("ticker", ticker).Int("bytes", len(data)).Msg("Logo cached")
	return nil
}

// Compile-time checks
var (
	_ interfaces.StorageManager    = (*Store)(nil)
	_ interfaces.SnapshotStore     = (*snapshotStorage)(nil)
	_ interfaces.DailyMappingStore = (*dailyStorage)(nil)
	_ interfaces.LogoStore         = (*logoStorage)(nil)
)
