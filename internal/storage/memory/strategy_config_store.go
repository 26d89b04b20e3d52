package memory

import (
	"context"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// StrategyConfigStore is an in-memory implementation of storage.StrategyConfigStore.
type StrategyConfigStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StrategyConfig // keyed by strategy_id
}

// NewStrategyConfigStore creates a new in-memory strategy config store.
func NewStrategyConfigStore() *StrategyConfigStore {
	return &StrategyConfigStore{
		data: make(map[string]*domain.StrategyConfig),
	}
}

// Compile-time interface check.
var _ storage.StrategyConfigStore = (*StrategyConfigStore)(nil)

// Insert adds a new config. Returns ErrDuplicateKey if strategy_id exists.
func (s *StrategyConfigStore) Insert(_ context.Context, c *domain.StrategyConfig) error {
	if c == nil || c.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.StrategyID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[c.StrategyID] = copyConfig(c)
	return nil
}

// InsertBulk adds multiple configs atomically. Fails entire batch on any duplicate.
func (s *StrategyConfigStore) InsertBulk(_ context.Context, configs []*domain.StrategyConfig) error {
	if len(configs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(configs))

	for _, c := range configs {
		if c == nil || c.StrategyID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[c.StrategyID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.StrategyID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.StrategyID] = struct{}{}
	}

	for _, c := range configs {
		s.data[c.StrategyID] = copyConfig(c)
	}
	return nil
}

// GetByID retrieves a config by strategy_id. Returns ErrNotFound if not exists.
func (s *StrategyConfigStore) GetByID(_ context.Context, strategyID string) (*domain.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[strategyID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyConfig(c), nil
}

// GetAll retrieves all configs, ordered by strategy_id ASC.
func (s *StrategyConfigStore) GetAll(_ context.Context) ([]*domain.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StrategyConfig, 0, len(s.data))
	for _, c := range s.data {
		result = append(result, copyConfig(c))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})
	return result, nil
}

// copyConfig deep-copies a config including optional filter pointers.
func copyConfig(c *domain.StrategyConfig) *domain.StrategyConfig {
	cp := *c
	if c.RSIMax != nil {
		v := *c.RSIMax
		cp.RSIMax = &v
	}
	if c.RSIMin != nil {
		v := *c.RSIMin
		cp.RSIMin = &v
	}
	return &cp
}
