package memory

import (
	"context"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// TradeResultStore is an in-memory implementation of storage.TradeResultStore.
type TradeResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeResult // keyed by trade_id
}

// NewTradeResultStore creates a new in-memory trade result store.
func NewTradeResultStore() *TradeResultStore {
	return &TradeResultStore{
		data: make(map[string]*domain.TradeResult),
	}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(_ context.Context, r *domain.TradeResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.data[r.TradeID] = &cp
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TradeResultStore) InsertBulk(_ context.Context, results []*domain.TradeResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))

	for _, r := range results {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TradeID] = struct{}{}
	}

	for _, r := range results {
		cp := *r
		s.data[r.TradeID] = &cp
	}
	return nil
}

// GetByStrategyID retrieves all results for a strategy, ordered by entry_time ASC.
func (s *TradeResultStore) GetByStrategyID(_ context.Context, strategyID string) ([]*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeResult
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			cp := *r
			result = append(result, &cp)
		}
	}

	sortResults(result)
	return result, nil
}

// GetBySignalID retrieves all results produced by one signal.
func (s *TradeResultStore) GetBySignalID(_ context.Context, signalID string) ([]*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeResult
	for _, r := range s.data {
		if r.SignalID == signalID {
			cp := *r
			result = append(result, &cp)
		}
	}

	sortResults(result)
	return result, nil
}

// GetAll retrieves all results, ordered by entry_time ASC, trade_id ASC.
func (s *TradeResultStore) GetAll(_ context.Context) ([]*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeResult, 0, len(s.data))
	for _, r := range s.data {
		cp := *r
		result = append(result, &cp)
	}

	sortResults(result)
	return result, nil
}

func sortResults(results []*domain.TradeResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].EntryTime != results[j].EntryTime {
			return results[i].EntryTime < results[j].EntryTime
		}
		return results[i].TradeID < results[j].TradeID
	})
}
