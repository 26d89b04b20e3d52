package storage

import (
	"context"

	"pump-strategy-lab/internal/domain"
)

// CandleStore provides access to candle storage.
// Candles are keyed by (symbol, close_time).
type CandleStore interface {
	// Insert adds a closed candle. Returns ErrDuplicateKey if (symbol, close_time) exists.
	Insert(ctx context.Context, c *domain.Candle) error

	// InsertBulk adds multiple candles atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetBySymbol retrieves all candles for a symbol, ordered by close_time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Candle, error)

	// GetByTimeRange retrieves candles for a symbol within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error)
}

// SignalStore provides access to pump signal storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.PumpSignal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.PumpSignal, error)

	// GetBySymbol retrieves all signals for a symbol, ordered by detected_at ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PumpSignal, error)

	// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.PumpSignal, error)
}

// TradeResultStore provides access to trade result storage.
type TradeResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, r *domain.TradeResult) error

	// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, results []*domain.TradeResult) error

	// GetByStrategyID retrieves all results for a strategy, ordered by entry_time ASC.
	GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.TradeResult, error)

	// GetBySignalID retrieves all results produced by one signal.
	GetBySignalID(ctx context.Context, signalID string) ([]*domain.TradeResult, error)

	// GetAll retrieves all results, ordered by entry_time ASC, trade_id ASC.
	GetAll(ctx context.Context) ([]*domain.TradeResult, error)
}

// StrategyConfigStore provides access to the generated strategy population.
// Configs are immutable after insert.
type StrategyConfigStore interface {
	// Insert adds a new config. Returns ErrDuplicateKey if strategy_id exists.
	Insert(ctx context.Context, c *domain.StrategyConfig) error

	// InsertBulk adds multiple configs atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, configs []*domain.StrategyConfig) error

	// GetByID retrieves a config by strategy_id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, strategyID string) (*domain.StrategyConfig, error)

	// GetAll retrieves all configs, ordered by strategy_id ASC.
	GetAll(ctx context.Context) ([]*domain.StrategyConfig, error)
}

// BotStore provides access to promoted bot instances.
// Stage is the only mutable column; everything else is written once.
type BotStore interface {
	// Insert adds a new bot. Returns ErrDuplicateKey if bot_id exists.
	Insert(ctx context.Context, b *domain.BotInstance) error

	// UpdateStage moves a bot to a new stage. Returns ErrNotFound if bot_id not exists.
	UpdateStage(ctx context.Context, botID string, stage domain.Stage, promotedAt int64) error

	// GetByID retrieves a bot by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, botID string) (*domain.BotInstance, error)

	// GetActive retrieves all bots not in RETIRED stage, ordered by bot_id ASC.
	GetActive(ctx context.Context) ([]*domain.BotInstance, error)
}

// TransitionStore provides access to stage transition records (append-only).
type TransitionStore interface {
	// Insert adds a transition record.
	Insert(ctx context.Context, t *domain.StageTransition) error

	// GetByStrategyID retrieves all transitions for a strategy, ordered by timestamp ASC.
	GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.StageTransition, error)

	// GetAll retrieves all transitions, ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.StageTransition, error)
}
