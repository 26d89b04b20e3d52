package clickhouse

import (
	"context"
	"fmt"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// TradeResultStore implements storage.TradeResultStore using ClickHouse.
type TradeResultStore struct {
	conn *Conn
}

// NewTradeResultStore creates a new TradeResultStore.
func NewTradeResultStore(conn *Conn) *TradeResultStore {
	return &TradeResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

const selectTradeResultColumns = `
	trade_id, strategy_id, signal_id, symbol, direction,
	entry_time, entry_price, exit_time, exit_price, exit_reason,
	position_size, pnl, pnl_pct, hold_candles
`

// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(ctx context.Context, r *domain.TradeResult) error {
	return s.InsertBulk(ctx, []*domain.TradeResult{r})
}

// InsertBulk adds multiple results. Fails entire batch on any duplicate trade_id.
func (s *TradeResultStore) InsertBulk(ctx context.Context, results []*domain.TradeResult) error {
	if len(results) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, r := range results {
		if _, exists := seen[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.TradeID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range results {
		exists, err := s.exists(ctx, r.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_results (
			trade_id, strategy_id, signal_id, symbol, direction,
			entry_time, entry_price, exit_time, exit_price, exit_reason,
			position_size, pnl, pnl_pct, hold_candles
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		err = batch.Append(
			r.TradeID, r.StrategyID, r.SignalID, r.Symbol, string(r.Direction),
			uint64(r.EntryTime), r.EntryPrice, uint64(r.ExitTime), r.ExitPrice, r.ExitReason,
			r.PositionSize, r.Pnl, r.PnlPct, uint32(r.HoldCandles),
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

// GetByStrategyID retrieves all results for a strategy, ordered by entry_time ASC.
func (s *TradeResultStore) GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.TradeResult, error) {
	query := `
		SELECT ` + selectTradeResultColumns + `
		FROM trade_results
		WHERE strategy_id = ?
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query by strategy id: %w", err)
	}
	defer rows.Close()

	return scanTradeResults(rows)
}

// GetBySignalID retrieves all results produced by one signal.
func (s *TradeResultStore) GetBySignalID(ctx context.Context, signalID string) ([]*domain.TradeResult, error) {
	query := `
		SELECT ` + selectTradeResultColumns + `
		FROM trade_results
		WHERE signal_id = ?
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("query by signal id: %w", err)
	}
	defer rows.Close()

	return scanTradeResults(rows)
}

// GetAll retrieves all results, ordered by entry_time ASC, trade_id ASC.
func (s *TradeResultStore) GetAll(ctx context.Context) ([]*domain.TradeResult, error) {
	query := `
		SELECT ` + selectTradeResultColumns + `
		FROM trade_results
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all trade results: %w", err)
	}
	defer rows.Close()

	return scanTradeResults(rows)
}

// exists checks if a result with the given trade_id exists.
func (s *TradeResultStore) exists(ctx context.Context, tradeID string) (bool, error) {
	query := `
		SELECT count(*) FROM trade_results
		WHERE trade_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, tradeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTradeResults scans multiple rows.
func scanTradeResults(rows chRows) ([]*domain.TradeResult, error) {
	var results []*domain.TradeResult

	for rows.Next() {
		var r domain.TradeResult
		var entryTime, exitTime uint64
		var holdCandles uint32
		var direction string

		err := rows.Scan(
			&r.TradeID, &r.StrategyID, &r.SignalID, &r.Symbol, &direction,
			&entryTime, &r.EntryPrice, &exitTime, &r.ExitPrice, &r.ExitReason,
			&r.PositionSize, &r.Pnl, &r.PnlPct, &holdCandles,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade result row: %w", err)
		}

		r.EntryTime = int64(entryTime)
		r.ExitTime = int64(exitTime)
		r.HoldCandles = int(holdCandles)
		r.Direction = domain.Direction(direction)
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade result rows: %w", err)
	}

	return results, nil
}
