package clickhouse

import (
	"context"
	"fmt"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using ClickHouse.
// The in-memory candle window of a signal is not persisted; retrieved
// signals carry scalar fields only.
type SignalStore struct {
	conn *Conn
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Conn) *SignalStore {
	return &SignalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.PumpSignal) error {
	exists, err := s.exists(ctx, sig.SignalID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pump_signals (
			signal_id, symbol, detected_at, direction,
			price_change_pct, volume_multiplier, quote_volume, rsi, confidence
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		sig.SignalID, sig.Symbol, uint64(sig.DetectedAt), string(sig.Direction),
		sig.PriceChangePct, sig.VolumeMultiplier, sig.QuoteVolume, sig.RSI, sig.Confidence,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.PumpSignal, error) {
	query := `
		SELECT signal_id, symbol, detected_at, direction,
		       price_change_pct, volume_multiplier, quote_volume, rsi, confidence
		FROM pump_signals
		WHERE signal_id = ?
	`

	rows, err := s.conn.Query(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("query by signal id: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, storage.ErrNotFound
	}
	return signals[0], nil
}

// GetBySymbol retrieves all signals for a symbol, ordered by detected_at ASC.
func (s *SignalStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PumpSignal, error) {
	query := `
		SELECT signal_id, symbol, detected_at, direction,
		       price_change_pct, volume_multiplier, quote_volume, rsi, confidence
		FROM pump_signals
		WHERE symbol = ?
		ORDER BY detected_at ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered ASC.
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.PumpSignal, error) {
	query := `
		SELECT signal_id, symbol, detected_at, direction,
		       price_change_pct, volume_multiplier, quote_volume, rsi, confidence
		FROM pump_signals
		WHERE detected_at >= ? AND detected_at <= ?
		ORDER BY detected_at ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// exists checks if a signal with the given ID exists.
func (s *SignalStore) exists(ctx context.Context, signalID string) (bool, error) {
	query := `
		SELECT count(*) FROM pump_signals
		WHERE signal_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, signalID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSignals scans multiple rows.
func scanSignals(rows chRows) ([]*domain.PumpSignal, error) {
	var signals []*domain.PumpSignal

	for rows.Next() {
		var sig domain.PumpSignal
		var detectedAt uint64
		var direction string

		err := rows.Scan(
			&sig.SignalID, &sig.Symbol, &detectedAt, &direction,
			&sig.PriceChangePct, &sig.VolumeMultiplier, &sig.QuoteVolume, &sig.RSI, &sig.Confidence,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}

		sig.DetectedAt = int64(detectedAt)
		sig.Direction = domain.Direction(direction)
		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
