// Package sink hands append-only records (signals, trade results, stage
// transitions) to the repository layer without ever blocking the candle
// path. The queue is bounded with a drop-oldest policy; sustained store
// failure degrades to local-only operation with an explicit signal.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

const (
	defaultQueueSize  = 4096
	writeRetries      = 3
	baseRetryDelay    = 200 * time.Millisecond
	degradedThreshold = 5 // consecutive failed records before degraded mode
)

// Stores groups the repository targets. Any nil store skips that record kind.
type Stores struct {
	Signals     storage.SignalStore
	Trades      storage.TradeResultStore
	Transitions storage.TransitionStore
}

// record is one queued write.
type record struct {
	signal     *domain.PumpSignal
	trade      *domain.TradeResult
	transition *domain.StageTransition
}

// Sink is the asynchronous repository writer.
type Sink struct {
	stores Stores

	mu    sync.Mutex
	queue []record // bounded ring; head at index 0
	cap   int
	wake  chan struct{}

	dropped      atomic.Uint64
	degraded     atomic.Bool
	consecFailed int

	stopped atomic.Bool
	done    chan struct{}
}

// New creates a sink with the given queue capacity (0 means default).
func New(stores Stores, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Sink{
		stores: stores,
		cap:    queueSize,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// PublishSignal enqueues a pump signal record. Never blocks.
func (s *Sink) PublishSignal(sig *domain.PumpSignal) {
	s.enqueue(record{signal: sig})
}

// PublishTrade enqueues a trade result record. Never blocks.
func (s *Sink) PublishTrade(t *domain.TradeResult) {
	s.enqueue(record{trade: t})
}

// PublishTransition enqueues a stage transition record. Never blocks.
func (s *Sink) PublishTransition(t *domain.StageTransition) {
	s.enqueue(record{transition: t})
}

// Degraded reports whether the sink is in local-only degraded mode.
func (s *Sink) Degraded() bool {
	return s.degraded.Load()
}

// Dropped returns the number of records dropped by backpressure.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// QueueDepth returns the current queue length.
func (s *Sink) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// enqueue appends under the capacity bound, dropping the oldest record when
// full. A slow repository can therefore never unbound memory growth.
func (s *Sink) enqueue(r record) {
	if s.stopped.Load() {
		return
	}

	s.mu.Lock()
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, r)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until the context is cancelled, then flushes what is
// already queued and returns.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.stopped.Store(true)
			s.drain(context.Background())
			return
		case <-s.wake:
			s.drain(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (s *Sink) Wait() {
	<-s.done
}

func (s *Sink) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		r := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.writeWithRetry(ctx, r); err != nil {
			s.consecFailed++
			if s.consecFailed >= degradedThreshold && !s.degraded.Load() {
				s.degraded.Store(true)
				log.Printf("[sink] entering degraded mode after %d consecutive failures: %v", s.consecFailed, err)
			}
			if !s.degraded.Load() {
				log.Printf("[sink] write failed: %v", err)
			}
			continue
		}

		if s.consecFailed > 0 || s.degraded.Load() {
			s.consecFailed = 0
			if s.degraded.Swap(false) {
				log.Printf("[sink] repository recovered, leaving degraded mode")
			}
		}
	}
}

// writeWithRetry attempts the write with bounded exponential backoff.
// Duplicate-key errors are success: the record was already persisted.
func (s *Sink) writeWithRetry(ctx context.Context, r record) error {
	var lastErr error
	for attempt := 0; attempt < writeRetries; attempt++ {
		err := s.write(ctx, r)
		if err == nil || errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		select {
		case <-time.After(baseRetryDelay * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

func (s *Sink) write(ctx context.Context, r record) error {
	switch {
	case r.signal != nil:
		if s.stores.Signals == nil {
			return nil
		}
		if err := s.stores.Signals.Insert(ctx, r.signal); err != nil {
			return fmt.Errorf("persist signal %s: %w", r.signal.SignalID, err)
		}
	case r.trade != nil:
		if s.stores.Trades == nil {
			return nil
		}
		if err := s.stores.Trades.Insert(ctx, r.trade); err != nil {
			return fmt.Errorf("persist trade %s: %w", r.trade.TradeID, err)
		}
	case r.transition != nil:
		if s.stores.Transitions == nil {
			return nil
		}
		if err := s.stores.Transitions.Insert(ctx, r.transition); err != nil {
			return fmt.Errorf("persist transition %s->%s: %w", r.transition.From, r.transition.To, err)
		}
	}
	return nil
}
