package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

func testCandle(symbol string, closeTime int64, closePrice float64) *domain.Candle {
	return &domain.Candle{
		Symbol:      symbol,
		Open:        closePrice - 0.5,
		High:        closePrice + 1,
		Low:         closePrice - 1,
		Close:       closePrice,
		Volume:      10,
		QuoteVolume: 10 * closePrice,
		OpenTime:    closeTime - 59999,
		CloseTime:   closeTime,
	}
}

func TestCandleStore_InsertAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	c := testCandle("BTCUSDT", 1700000059999, 42000)
	require.NoError(t, store.Insert(ctx, c))

	candles, err := store.GetBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 1)

	got := candles[0]
	assert.Equal(t, c.Symbol, got.Symbol)
	assert.Equal(t, c.OpenTime, got.OpenTime)
	assert.Equal(t, c.CloseTime, got.CloseTime)
	assert.Equal(t, c.Open, got.Open)
	assert.Equal(t, c.High, got.High)
	assert.Equal(t, c.Low, got.Low)
	assert.Equal(t, c.Close, got.Close)
	assert.Equal(t, c.Volume, got.Volume)
	assert.Equal(t, c.QuoteVolume, got.QuoteVolume)
}

func TestCandleStore_InsertDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	c := testCandle("BTCUSDT", 1700000059999, 42000)
	require.NoError(t, store.Insert(ctx, c))

	err := store.Insert(ctx, c)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCandleStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	batch := []*domain.Candle{
		testCandle("BTCUSDT", 1700000059999, 42000),
		testCandle("BTCUSDT", 1700000059999, 42001),
	}

	err := store.InsertBulk(ctx, batch)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCandleStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	batch := []*domain.Candle{
		testCandle("ETHUSDT", 3000, 2000),
		testCandle("ETHUSDT", 1000, 2010),
		testCandle("ETHUSDT", 2000, 2020),
		testCandle("BTCUSDT", 2000, 42000),
	}
	require.NoError(t, store.InsertBulk(ctx, batch))

	// Inclusive bounds, symbol-scoped, ordered by close_time ASC
	candles, err := store.GetByTimeRange(ctx, "ETHUSDT", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1000), candles[0].CloseTime)
	assert.Equal(t, int64(2000), candles[1].CloseTime)
}

func TestCandleStore_GetBySymbolEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	candles, err := store.GetBySymbol(ctx, "NOSUCHUSDT")
	require.NoError(t, err)
	assert.Empty(t, candles)
}
