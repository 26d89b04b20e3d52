package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"

	"pump-strategy-lab/internal/domain"
)

// StubCandleSource is a channel-fed source for tests and replay drivers.
type StubCandleSource struct {
	out    chan *domain.Candle
	closed atomic.Bool
}

// NewStubCandleSource creates a stub source with the given buffer size.
func NewStubCandleSource(buffer int) *StubCandleSource {
	return &StubCandleSource{out: make(chan *domain.Candle, buffer)}
}

// Subscribe returns the candle channel.
func (s *StubCandleSource) Subscribe(_ context.Context) (<-chan *domain.Candle, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("source closed")
	}
	return s.out, nil
}

// Emit pushes a candle into the stream. Blocks when the buffer is full.
func (s *StubCandleSource) Emit(c *domain.Candle) {
	s.out <- c
}

// Close closes the candle channel.
func (s *StubCandleSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.out)
	return nil
}

var _ CandleSource = (*StubCandleSource)(nil)
var _ CandleSource = (*WSKlineSource)(nil)
