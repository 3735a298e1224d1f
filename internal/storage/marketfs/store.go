// Package marketfs implements the file backend: one JSON snapshot per ticker,
// a single daily mapping file, and a directory of cached logos.
package marketfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/interfaces"
	"github.com/KeshavPeri/tickle/internal/models"
)

// Store provides file-based storage for snapshots, the daily mapping and logos.
type Store struct {
	snapshotsDir string
	dailyPath    string
	logosDir     string
	logger       *common.Logger

	// dailyMu serialises read-modify-write of the mapping file.
	dailyMu sync.Mutex
}

// NewStore creates the file store, creating directories as needed.
func NewStore(logger *common.Logger, snapshotsDir, dailyPath, logosDir string) (*Store, error) {
	for _, dir := range []string{snapshotsDir, filepath.Dir(dailyPath), logosDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger.Info().
		Str("snapshots", snapshotsDir).
		Str("daily", dailyPath).
		Str("logos", logosDir).
		Msg("File store opened")

	return &Store{
		snapshotsDir: snapshotsDir,
		dailyPath:    dailyPath,
		logosDir:     logosDir,
		logger:       logger,
	}, nil
}

// SnapshotStore returns the snapshot storage interface.
func (s *Store) SnapshotStore() interfaces.SnapshotStore {
	return &snapshotStorage{store: s}
}

// DailyMappingStore returns the daily mapping interface.
func (s *Store) DailyMappingStore() interfaces.DailyMappingStore {
	return &dailyStorage{store: s}
}

// LogoStore returns the logo storage interface.
func (s *Store) LogoStore() interfaces.LogoStore {
	return &logoStorage{store: s}
}

// Backend names this backend.
func (s *Store) Backend() string {
	return "file"
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func keyPath(dir, key, ext string) string {
	return filepath.Join(dir, sanitizeKey(key)+ext)
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return models.ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeAtomic(path, append(jsonData, '\n'))
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place, so readers see either the old or the new content.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func listKeys(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Strings(keys)
	return keys, nil
}

// --- SnapshotStore ---

type snapshotStorage struct {
	store *Store
}

func (ss *snapshotStorage) GetSnapshot(_ context.Context, ticker string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := readJSON(keyPath(ss.store.snapshotsDir, ticker, ".json"), &snap); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("snapshot for '%s': %w", ticker, models.ErrNotFound)
		}
		return nil, err
	}
	if snap.Ticker == "" {
		snap.Ticker = ticker
	}
	snap.Normalize()
	return &snap, nil
}

func (ss *snapshotStorage) SaveSnapshot(_ context.Context, ticker string, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot for '%s'", ticker)
	}
	snap.Normalize()
	if err := writeJSON(keyPath(ss.store.snapshotsDir, ticker, ".json"), snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	ss.store.logger.Debug().Str("ticker", ticker).Str("source", snap.Source).Msg("Snapshot saved")
	return nil
}

// builtDate decodes only the build date, ignoring the series payload.
type builtDate struct {
	BuiltDateUTC string `json:"builtDateUTC"`
}

func (ss *snapshotStorage) IsFresh(_ context.Context, ticker, day string) (bool, error) {
	var bd builtDate
	if err := readJSON(keyPath(ss.store.snapshotsDir, ticker, ".json"), &bd); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return bd.BuiltDateUTC != "" && bd.BuiltDateUTC == day, nil
}

func (ss *snapshotStorage) ListTickers(_ context.Context) ([]string, error) {
	return listKeys(ss.store.snapshotsDir, ".json")
}

// --- DailyMappingStore ---

type dailyStorage struct {
	store *Store
}

func (ds *dailyStorage) load() (map[string]string, error) {
	mapping := make(map[string]string)
	if err := readJSON(ds.store.dailyPath, &mapping); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	return mapping, nil
}

func (ds *dailyStorage) GetDaily(_ context.Context, day string) (string, error) {
	ds.store.dailyMu.Lock()
	defer ds.store.dailyMu.Unlock()

	mapping, err := ds.load()
	if err != nil {
		return "", err
	}
	ticker, ok := mapping[day]
	if !ok || ticker == "" {
		return "", fmt.Errorf("daily entry for %s: %w", day, models.ErrNotFound)
	}
	return ticker, nil
}

func (ds *dailyStorage) RecordDaily(_ context.Context, day, ticker string) (string, error) {
	ds.store.dailyMu.Lock()
	defer ds.store.dailyMu.Unlock()

	mapping, err := ds.load()
	if err != nil {
		return "", err
	}
	if existing, ok := mapping[day]; ok && existing != "" {
		return existing, nil
	}
	mapping[day] = ticker
	if err := writeJSON(ds.store.dailyPath, mapping); err != nil {
		return "", fmt.Errorf("failed to save daily mapping: %w", err)
	}
	ds.store.logger.Info().Str("day", day).Str("ticker", ticker).Msg("Daily ticker recorded")
	return ticker, nil
}

func (ds *dailyStorage) AllDaily(_ context.Context) (map[string]string, error) {
	ds.store.dailyMu.Lock()
	defer ds.store.dailyMu.Unlock()
	return ds.load()
}

// --- LogoStore ---

type logoStorage struct {
	store *Store
}

func (ls *logoStorage) HasLogo(_ context.Context, ticker string) bool {
	info, err := os.Stat(keyPath(ls.store.logosDir, ticker, ".png"))
	return err == nil && info.Size() > 0
}

func (ls *logoStorage) GetLogo(_ context.Context, ticker string) ([]byte, error) {
	data, err := os.ReadFile(keyPath(ls.store.logosDir, ticker, ".png"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("logo for '%s': %w", ticker, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read logo: %w", err)
	}
	return data, nil
}

func (ls *logoStorage) SaveLogo(_ context.Context, ticker string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty logo for '%s'", ticker)
	}
	if err := writeAtomic(keyPath(ls.store.logosDir, ticker, ".png"), data); err != nil {
		return fmt.Errorf("failed to save logo: %w", err)
	}
	ls.store.logger.Debug().Str("ticker", ticker).Int("bytes", len(data)).Msg("Logo cached")
	return nil
}

// Compile-time checks
var (
	_ interfaces.SnapshotStore     = (*snapshotStorage)(nil)
	_ interfaces.DailyMappingStore = (*dailyStorage)(nil)
	_ interfaces.LogoStore         = (*logoStorage)(nil)
)
