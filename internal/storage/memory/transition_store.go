package memory

import (
	"context"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// TransitionStore is an in-memory implementation of storage.TransitionStore.
type TransitionStore struct {
	mu   sync.RWMutex
	data []*domain.StageTransition
}

// NewTransitionStore creates a new in-memory transition store.
func NewTransitionStore() *TransitionStore {
	return &TransitionStore{}
}

// Compile-time interface check.
var _ storage.TransitionStore = (*TransitionStore)(nil)

// Insert adds a transition record.
func (s *TransitionStore) Insert(_ context.Context, t *domain.StageTransition) error {
	if t == nil || t.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.data = append(s.data, &cp)
	return nil
}

// GetByStrategyID retrieves all transitions for a strategy, ordered by timestamp ASC.
func (s *TransitionStore) GetByStrategyID(_ context.Context, strategyID string) ([]*domain.StageTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StageTransition
	for _, t := range s.data {
		if t.StrategyID == strategyID {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortTransitions(result)
	return result, nil
}

// GetAll retrieves all transitions, ordered by timestamp ASC.
func (s *TransitionStore) GetAll(_ context.Context) ([]*domain.StageTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StageTransition, 0, len(s.data))
	for _, t := range s.data {
		cp := *t
		result = append(result, &cp)
	}

	sortTransitions(result)
	return result, nil
}

func sortTransitions(transitions []*domain.StageTransition) {
	sort.SliceStable(transitions, func(i, j int) bool {
		return transitions[i].Timestamp < transitions[j].Timestamp
	})
}
