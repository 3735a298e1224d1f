package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/models"
)

func newMockStore(t *testing.T) (*Store, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewStore(db, "tickle", common.NewSilentLogger()), mock
}

func TestSnapshot_SaveAndGet(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	snap := &models.Snapshot{
		Ticker:       "AAPL",
		OneMonth:     []float64{1, 2},
		LastClose:    2,
		BuiltDateUTC: "2024-03-01",
		Source:       "stooq",
	}
	snap.Normalize()
	payload, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectTxPipeline()
	mock.ExpectSet("tickle:snapshot:AAPL", string(payload), 0).SetVal("OK")
	mock.ExpectHSet("tickle:built", "AAPL", "2024-03-01").SetVal(1)
	mock.ExpectSAdd("tickle:snapshots", "AAPL").SetVal(1)
	mock.ExpectTxPipelineExec()
	require.NoError(t, store.SnapshotStore().SaveSnapshot(ctx, "AAPL", snap))

	mock.ExpectGet("tickle:snapshot:AAPL").SetVal(string(payload))
	got, err := store.SnapshotStore().GetSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.LastClose)
	assert.Equal(t, []float64{1, 2}, got.OneMonth)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectGet("tickle:snapshot:MSFT").RedisNil()
	_, err := store.SnapshotStore().GetSnapshot(context.Background(), "MSFT")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_SaveFailure(t *testing.T) {
	store, mock := newMockStore(t)
	snap := &models.Snapshot{BuiltDateUTC: "2024-03-01"}
	snap.Normalize()
	payload, _ := json.Marshal(snap)

	mock.ExpectTxPipeline()
	mock.ExpectSet("tickle:snapshot:AAPL", string(payload), 0).SetErr(errors.New("connection reset"))
	err := store.SnapshotStore().SaveSnapshot(context.Background(), "AAPL", snap)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_SaveBuildDateFailureAbortsTx(t *testing.T) {
	store, mock := newMockStore(t)
	snap := &models.Snapshot{BuiltDateUTC: "2024-03-01"}
	snap.Normalize()
	payload, _ := json.Marshal(snap)

	// The whole MULTI/EXEC is abandoned, so EXEC is never sent.
	mock.ExpectTxPipeline()
	mock.ExpectSet("tickle:snapshot:AAPL", string(payload), 0).SetVal("OK")
	mock.ExpectHSet("tickle:built", "AAPL", "2024-03-01").SetErr(errors.New("conn reset"))
	err := store.SnapshotStore().SaveSnapshot(context.Background(), "AAPL", snap)
	assert.ErrorContains(t, err, "failed to save snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsFresh(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectHGet("tickle:built", "AAPL").SetVal("2024-03-01")
	fresh, err := store.SnapshotStore().IsFresh(ctx, "AAPL", "2024-03-01")
	require.NoError(t, err)
	assert.True(t, fresh)

	mock.ExpectHGet("tickle:built", "AAPL").SetVal("2024-02-29")
	fresh, err = store.SnapshotStore().IsFresh(ctx, "AAPL", "2024-03-01")
	require.NoError(t, err)
	assert.False(t, fresh)

	mock.ExpectHGet("tickle:built", "MSFT").RedisNil()
	fresh, err = store.SnapshotStore().IsFresh(ctx, "MSFT", "2024-03-01")
	require.NoError(t, err)
	assert.False(t, fresh)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTickers_Sorted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectSMembers("tickle:snapshots").SetVal([]string{"MSFT", "AAPL", "NVDA"})
	tickers, err := store.SnapshotStore().ListTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, tickers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDaily(t *testing.T) {
	store, mock := newMockStore(t)
	daily := store.DailyMappingStore()
	ctx := context.Background()

	t.Run("first writer wins", func(t *testing.T) {
		mock.ExpectHSetNX("tickle:daily", "2024-03-01", "AAPL").SetVal(true)
		got, err := daily.RecordDaily(ctx, "2024-03-01", "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", got)
	})

	t.Run("existing entry is returned", func(t *testing.T) {
		mock.ExpectHSetNX("tickle:daily", "2024-03-01", "MSFT").SetVal(false)
		mock.ExpectHGet("tickle:daily", "2024-03-01").SetVal("AAPL")
		got, err := daily.RecordDaily(ctx, "2024-03-01", "MSFT")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", got)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectHSetNX("tickle:daily", "2024-03-02", "NVDA").SetErr(redis.TxFailedErr)
		_, err := daily.RecordDaily(ctx, "2024-03-02", "NVDA")
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDaily_GetAndAll(t *testing.T) {
	store, mock := newMockStore(t)
	daily := store.DailyMappingStore()
	ctx := context.Background()

	mock.ExpectHGet("tickle:daily", "2024-03-05").RedisNil()
	_, err := daily.GetDaily(ctx, "2024-03-05")
	assert.ErrorIs(t, err, models.ErrNotFound)

	mock.ExpectHGetAll("tickle:daily").SetVal(map[string]string{"2024-03-01": "AAPL"})
	all, err := daily.AllDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2024-03-01": "AAPL"}, all)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogos(t *testing.T) {
	store, mock := newMockStore(t)
	logos := store.LogoStore()
	ctx := context.Background()
	png := []byte{0x89, 'P', 'N', 'G'}

	assert.Error(t, logos.SaveLogo(ctx, "AAPL", nil))

	mock.ExpectSet("tickle:logo:AAPL", png, 0).SetVal("OK")
	require.NoError(t, logos.SaveLogo(ctx, "AAPL", png))

	mock.ExpectExists("tickle:logo:AAPL").SetVal(1)
	assert.True(t, logos.HasLogo(ctx, "AAPL"))

	mock.ExpectGet("tickle:logo:AAPL").SetVal(string(png))
	got, err := logos.GetLogo(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, png, got)

	mock.ExpectGet("tickle:logo:MSFT").RedisNil()
	_, err = logos.GetLogo(ctx, "MSFT")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendName(t *testing.T) {
	store, _ := newMockStore(t)
	assert.Equal(t, "redis", store.Backend())
}
