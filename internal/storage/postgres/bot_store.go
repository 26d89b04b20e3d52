package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// BotStore implements storage.BotStore using PostgreSQL.
// Stage is the only mutable column.
type BotStore struct {
	pool *Pool
}

// NewBotStore creates a new BotStore.
func NewBotStore(pool *Pool) *BotStore {
	return &BotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BotStore = (*BotStore)(nil)

// Insert adds a new bot. Returns ErrDuplicateKey if bot_id exists.
func (s *BotStore) Insert(ctx context.Context, b *domain.BotInstance) error {
	query := `
		INSERT INTO bots (
			bot_id, strategy_id, stage, created_at, promoted_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		b.BotID,
		b.StrategyID,
		string(b.Stage),
		b.CreatedAt,
		b.PromotedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// UpdateStage moves a bot to a new stage. Returns ErrNotFound if bot_id not exists.
func (s *BotStore) UpdateStage(ctx context.Context, botID string, stage domain.Stage, promotedAt int64) error {
	query := `
		UPDATE bots
		SET stage = $2, promoted_at = $3
		WHERE bot_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, botID, string(stage), promotedAt)
	if err != nil {
		return fmt.Errorf("update bot stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a bot by its ID. Returns ErrNotFound if not exists.
func (s *BotStore) GetByID(ctx context.Context, botID string) (*domain.BotInstance, error) {
	query := `
		SELECT bot_id, strategy_id, stage, created_at, promoted_at
		FROM bots
		WHERE bot_id = $1
	`

	row := s.pool.QueryRow(ctx, query, botID)
	b, err := scanBot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bot by id: %w", err)
	}
	return b, nil
}

// GetActive retrieves all bots not in RETIRED stage, ordered by bot_id ASC.
func (s *BotStore) GetActive(ctx context.Context) ([]*domain.BotInstance, error) {
	query := `
		SELECT bot_id, strategy_id, stage, created_at, promoted_at
		FROM bots
		WHERE stage != $1
		ORDER BY bot_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.StageRetired))
	if err != nil {
		return nil, fmt.Errorf("get active bots: %w", err)
	}
	defer rows.Close()

	return scanBots(rows)
}

// scanBot scans a single row.
func scanBot(row pgx.Row) (*domain.BotInstance, error) {
	var b domain.BotInstance
	var stage string

	err := row.Scan(
		&b.BotID,
		&b.StrategyID,
		&stage,
		&b.CreatedAt,
		&b.PromotedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Stage = domain.Stage(stage)
	return &b, nil
}

// scanBots scans multiple rows.
func scanBots(rows pgx.Rows) ([]*domain.BotInstance, error) {
	var bots []*domain.BotInstance

	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot row: %w", err)
		}
		bots = append(bots, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bot rows: %w", err)
	}

	return bots, nil
}
