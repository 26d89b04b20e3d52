package memory

import (
	"context"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PumpSignal // keyed by signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.PumpSignal),
	}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.PumpSignal) error {
	if sig == nil || sig.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *sig
	cp.Window = nil // reference window is not persisted
	s.data[sig.SignalID] = &cp
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.PumpSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *sig
	return &cp, nil
}

// GetBySymbol retrieves all signals for a symbol, ordered by detected_at ASC.
func (s *SignalStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PumpSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PumpSignal
	for _, sig := range s.data {
		if sig.Symbol == symbol {
			cp := *sig
			result = append(result, &cp)
		}
	}

	sortSignals(result)
	return result, nil
}

// GetByTimeRange retrieves signals within [start, end] inclusive, ordered ASC.
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.PumpSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PumpSignal
	for _, sig := range s.data {
		if sig.DetectedAt >= start && sig.DetectedAt <= end {
			cp := *sig
			result = append(result, &cp)
		}
	}

	sortSignals(result)
	return result, nil
}

func sortSignals(signals []*domain.PumpSignal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].DetectedAt != signals[j].DetectedAt {
			return signals[i].DetectedAt < signals[j].DetectedAt
		}
		return signals[i].SignalID < signals[j].SignalID
	})
}
