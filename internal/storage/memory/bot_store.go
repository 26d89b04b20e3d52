package memory

import (
	"context"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// BotStore is an in-memory implementation of storage.BotStore.
type BotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BotInstance // keyed by bot_id
}

// NewBotStore creates a new in-memory bot store.
func NewBotStore() *BotStore {
	return &BotStore{
		data: make(map[string]*domain.BotInstance),
	}
}

// Compile-time interface check.
var _ storage.BotStore = (*BotStore)(nil)

// Insert adds a new bot. Returns ErrDuplicateKey if bot_id exists.
func (s *BotStore) Insert(_ context.Context, b *domain.BotInstance) error {
	if b == nil || b.BotID == "" || b.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.BotID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *b
	s.data[b.BotID] = &cp
	return nil
}

// UpdateStage moves a bot to a new stage. Returns ErrNotFound if bot_id not exists.
func (s *BotStore) UpdateStage(_ context.Context, botID string, stage domain.Stage, promotedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.data[botID]
	if !exists {
		return storage.ErrNotFound
	}

	b.Stage = stage
	b.PromotedAt = promotedAt
	return nil
}

// GetByID retrieves a bot by its ID. Returns ErrNotFound if not exists.
func (s *BotStore) GetByID(_ context.Context, botID string) (*domain.BotInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[botID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// GetActive retrieves all bots not in RETIRED stage, ordered by bot_id ASC.
func (s *BotStore) GetActive(_ context.Context) ([]*domain.BotInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BotInstance
	for _, b := range s.data {
		if b.Stage != domain.StageRetired {
			cp := *b
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BotID < result[j].BotID
	})
	return result, nil
}
