package ingestion

import (
	"context"
	"errors"
	"log"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// CandleHandler receives admitted candles in per-symbol chronological order.
type CandleHandler func(ctx context.Context, c *domain.Candle)

// Runner consumes a candle source, drops stale candles, persists admitted
// ones and hands them to the pipeline.
type Runner struct {
	source      CandleSource
	candleStore storage.CandleStore // optional
	handler     CandleHandler
	guard       *OrderingGuard
	logger      *log.Logger

	processed int64
	stale     int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source      CandleSource
	CandleStore storage.CandleStore // nil disables persistence
	Handler     CandleHandler
	Logger      *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:      opts.Source,
		candleStore: opts.CandleStore,
		handler:     opts.Handler,
		guard:       NewOrderingGuard(),
		logger:      logger,
	}
}

// Run subscribes and processes candles until the context is cancelled or
// the source channel closes. Candles already received are always handed to
// the handler before returning.
func (r *Runner) Run(ctx context.Context) error {
	candles, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	r.logger.Println("[ingestion] runner started")

	for {
		select {
		case <-ctx.Done():
			r.drain(candles)
			r.logger.Printf("[ingestion] runner stopping: %d processed, %d stale dropped", r.processed, r.stale)
			return ctx.Err()

		case c, ok := <-candles:
			if !ok {
				r.logger.Println("[ingestion] candle channel closed")
				return errors.New("candle channel closed")
			}
			r.process(ctx, c)
		}
	}
}

// drain handles whatever the source already delivered without blocking for
// more.
func (r *Runner) drain(candles <-chan *domain.Candle) {
	for {
		select {
		case c, ok := <-candles:
			if !ok {
				return
			}
			r.process(context.Background(), c)
		default:
			return
		}
	}
}

func (r *Runner) process(ctx context.Context, c *domain.Candle) {
	if !r.guard.Admit(c) {
		r.stale++
		r.logger.Printf("[ingestion] stale candle dropped: %s close_time=%d", c.Symbol, c.CloseTime)
		return
	}

	if r.candleStore != nil {
		if err := r.candleStore.Insert(ctx, c); err != nil {
			// Duplicate is a re-delivery of the same closed candle, expected
			if !errors.Is(err, storage.ErrDuplicateKey) {
				r.logger.Printf("[ingestion] error storing candle %s@%d: %v", c.Symbol, c.CloseTime, err)
			}
		}
	}

	if r.handler != nil {
		r.handler(ctx, c)
	}
	r.processed++
}

// Processed returns the number of candles handed to the handler.
func (r *Runner) Processed() int64 { return r.processed }

// Stale returns the number of out-of-order candles dropped.
func (r *Runner) Stale() int64 { return r.stale }
