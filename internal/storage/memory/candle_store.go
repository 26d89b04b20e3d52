package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by symbol|close_time
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

func candleKey(symbol string, closeTime int64) string {
	return fmt.Sprintf("%s|%d", symbol, closeTime)
}

// Insert adds a closed candle. Returns ErrDuplicateKey if (symbol, close_time) exists.
func (s *CandleStore) Insert(_ context.Context, c *domain.Candle) error {
	if c == nil || c.Symbol == "" || c.CloseTime == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey(c.Symbol, c.CloseTime)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *c
	s.data[key] = &cp
	return nil
}

// InsertBulk adds multiple candles atomically. Fails entire batch on any duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(candles))

	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.CloseTime == 0 {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Symbol, c.CloseTime)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, c := range candles {
		cp := *c
		s.data[candleKey(c.Symbol, c.CloseTime)] = &cp
	}
	return nil
}

// GetBySymbol retrieves all candles for a symbol, ordered by close_time ASC.
func (s *CandleStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CloseTime < result[j].CloseTime
	})
	return result, nil
}

// GetByTimeRange retrieves candles for a symbol within [start, end] inclusive, ordered ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.CloseTime >= start && c.CloseTime <= end {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CloseTime < result[j].CloseTime
	})
	return result, nil
}
