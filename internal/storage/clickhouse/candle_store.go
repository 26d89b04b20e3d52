package clickhouse

import (
	"context"
	"fmt"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates on
// (symbol, close_time) are rejected with an explicit existence check.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// Insert adds a closed candle. Returns ErrDuplicateKey if (symbol, close_time) exists.
func (s *CandleStore) Insert(ctx context.Context, c *domain.Candle) error {
	return s.InsertBulk(ctx, []*domain.Candle{c})
}

// InsertBulk adds multiple candles. Fails entire batch on any duplicate.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol    string
		closeTime int64
	}
	seen := make(map[key]struct{})
	for _, c := range candles {
		k := key{c.Symbol, c.CloseTime}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.CloseTime)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, open_time, close_time, open, high, low, close, volume, quote_volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, uint64(c.OpenTime), uint64(c.CloseTime),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all candles for a symbol, ordered by close_time ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, open_time, close_time, open, high, low, close, volume, quote_volume
		FROM candles
		WHERE symbol = ?
		ORDER BY close_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles for a symbol within [start, end] (inclusive).
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, open_time, close_time, open, high, low, close, volume, quote_volume
		FROM candles
		WHERE symbol = ? AND close_time >= ? AND close_time <= ?
		ORDER BY close_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, closeTime int64) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND close_time = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(closeTime)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var openTime, closeTime uint64

		err := rows.Scan(
			&c.Symbol, &openTime, &closeTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.QuoteVolume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.OpenTime = int64(openTime)
		c.CloseTime = int64(closeTime)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
