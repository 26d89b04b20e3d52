package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// StrategyConfigStore implements storage.StrategyConfigStore using PostgreSQL.
// Configs are immutable after insert; there is no update path.
type StrategyConfigStore struct {
	pool *Pool
}

// NewStrategyConfigStore creates a new StrategyConfigStore.
func NewStrategyConfigStore(pool *Pool) *StrategyConfigStore {
	return &StrategyConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyConfigStore = (*StrategyConfigStore)(nil)

const insertStrategyConfigQuery = `
	INSERT INTO strategy_configs (
		strategy_id, direction, min_confidence, min_volume_multiplier,
		rsi_max, rsi_min, take_profit_pct, stop_loss_pct,
		max_hold_candles, position_size_quote
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const selectStrategyConfigColumns = `
	strategy_id, direction, min_confidence, min_volume_multiplier,
	rsi_max, rsi_min, take_profit_pct, stop_loss_pct,
	max_hold_candles, position_size_quote
`

// Insert adds a new config. Returns ErrDuplicateKey if strategy_id exists.
func (s *StrategyConfigStore) Insert(ctx context.Context, c *domain.StrategyConfig) error {
	_, err := s.pool.Exec(ctx, insertStrategyConfigQuery,
		c.StrategyID,
		string(c.Direction),
		c.MinConfidence,
		c.MinVolumeMultiplier,
		c.RSIMax,
		c.RSIMin,
		c.TakeProfitPct,
		c.StopLossPct,
		c.MaxHoldCandles,
		c.PositionSizeQuote,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert strategy config: %w", err)
	}
	return nil
}

// InsertBulk adds multiple configs atomically. Fails entire batch on any duplicate.
func (s *StrategyConfigStore) InsertBulk(ctx context.Context, configs []*domain.StrategyConfig) error {
	if len(configs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range configs {
		_, err := tx.Exec(ctx, insertStrategyConfigQuery,
			c.StrategyID,
			string(c.Direction),
			c.MinConfidence,
			c.MinVolumeMultiplier,
			c.RSIMax,
			c.RSIMin,
			c.TakeProfitPct,
			c.StopLossPct,
			c.MaxHoldCandles,
			c.PositionSizeQuote,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert strategy config in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

// GetByID retrieves a config by strategy_id. Returns ErrNotFound if not exists.
func (s *StrategyConfigStore) GetByID(ctx context.Context, strategyID string) (*domain.StrategyConfig, error) {
	query := `
		SELECT ` + selectStrategyConfigColumns + `
		FROM strategy_configs
		WHERE strategy_id = $1
	`

	row := s.pool.QueryRow(ctx, query, strategyID)
	c, err := scanStrategyConfig(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get strategy config by id: %w", err)
	}
	return c, nil
}

// GetAll retrieves all configs, ordered by strategy_id ASC.
func (s *StrategyConfigStore) GetAll(ctx context.Context) ([]*domain.StrategyConfig, error) {
	query := `
		SELECT ` + selectStrategyConfigColumns + `
		FROM strategy_configs
		ORDER BY strategy_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all strategy configs: %w", err)
	}
	defer rows.Close()

	return scanStrategyConfigs(rows)
}

// scanStrategyConfig scans a single row.
func scanStrategyConfig(row pgx.Row) (*domain.StrategyConfig, error) {
	var c domain.StrategyConfig
	var direction string

	err := row.Scan(
		&c.StrategyID,
		&direction,
		&c.MinConfidence,
		&c.MinVolumeMultiplier,
		&c.RSIMax,
		&c.RSIMin,
		&c.TakeProfitPct,
		&c.StopLossPct,
		&c.MaxHoldCandles,
		&c.PositionSizeQuote,
	)
	if err != nil {
		return nil, err
	}

	c.Direction = domain.Direction(direction)
	return &c, nil
}

// scanStrategyConfigs scans multiple rows.
func scanStrategyConfigs(rows pgx.Rows) ([]*domain.StrategyConfig, error) {
	var configs []*domain.StrategyConfig

	for rows.Next() {
		c, err := scanStrategyConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy config row: %w", err)
		}
		configs = append(configs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy config rows: %w", err)
	}

	return configs, nil
}
