package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// TransitionStore implements storage.TransitionStore using PostgreSQL.
// Transitions are append-only; rows are never updated or deleted.
type TransitionStore struct {
	pool *Pool
}

// NewTransitionStore creates a new TransitionStore.
func NewTransitionStore(pool *Pool) *TransitionStore {
	return &TransitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransitionStore = (*TransitionStore)(nil)

// Insert adds a transition record.
func (s *TransitionStore) Insert(ctx context.Context, t *domain.StageTransition) error {
	query := `
		INSERT INTO stage_transitions (
			strategy_id, bot_id, from_stage, to_stage, reason, timestamp_ms,
			window_trades, window_win_rate, window_profit_pf
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		t.StrategyID,
		t.BotID,
		string(t.From),
		string(t.To),
		t.Reason,
		t.Timestamp,
		t.WindowTrades,
		t.WindowWinRate,
		t.WindowProfitPF,
	)
	if err != nil {
		return fmt.Errorf("insert stage transition: %w", err)
	}
	return nil
}

// GetByStrategyID retrieves all transitions for a strategy, ordered by timestamp ASC.
func (s *TransitionStore) GetByStrategyID(ctx context.Context, strategyID string) ([]*domain.StageTransition, error) {
	query := `
		SELECT strategy_id, bot_id, from_stage, to_stage, reason, timestamp_ms,
		       window_trades, window_win_rate, window_profit_pf
		FROM stage_transitions
		WHERE strategy_id = $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get transitions by strategy id: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// GetAll retrieves all transitions, ordered by timestamp ASC.
func (s *TransitionStore) GetAll(ctx context.Context) ([]*domain.StageTransition, error) {
	query := `
		SELECT strategy_id, bot_id, from_stage, to_stage, reason, timestamp_ms,
		       window_trades, window_win_rate, window_profit_pf
		FROM stage_transitions
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all transitions: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// scanTransition scans a single row.
func scanTransition(row pgx.Row) (*domain.StageTransition, error) {
	var t domain.StageTransition
	var from, to string

	err := row.Scan(
		&t.StrategyID,
		&t.BotID,
		&from,
		&to,
		&t.Reason,
		&t.Timestamp,
		&t.WindowTrades,
		&t.WindowWinRate,
		&t.WindowProfitPF,
	)
	if err != nil {
		return nil, err
	}

	t.From = domain.Stage(from)
	t.To = domain.Stage(to)
	return &t, nil
}

// scanTransitions scans multiple rows.
func scanTransitions(rows pgx.Rows) ([]*domain.StageTransition, error) {
	var transitions []*domain.StageTransition

	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition rows: %w", err)
	}

	return transitions, nil
}
