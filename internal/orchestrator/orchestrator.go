// Package orchestrator wires the live pipeline together:
// ingestion → detection → horizon tracking → evaluation → promotion.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"pump-strategy-lab/internal/detector"
	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/engine"
	"pump-strategy-lab/internal/ingestion"
	"pump-strategy-lab/internal/observability"
	"pump-strategy-lab/internal/population"
	"pump-strategy-lab/internal/promotion"
	"pump-strategy-lab/internal/sink"
	"pump-strategy-lab/internal/storage"
)

const defaultWorkers = 4

// Orchestrator owns the full candle-to-promotion flow. One goroutine feeds
// candles through the detector and tracker; a worker pool evaluates
// completed horizons against the whole population.
type Orchestrator struct {
	source      ingestion.CandleSource
	candleStore storage.CandleStore
	detector    *detector.PumpDetector
	tracker     *engine.Tracker
	engine      *engine.Engine
	registry    *population.Registry
	manager     *promotion.Manager
	sink        *sink.Sink
	workers     int
	logger      *log.Logger

	signalsDetected atomic.Int64
	tradesRecorded  atomic.Int64
}

// Options for creating an Orchestrator.
type Options struct {
	Source      ingestion.CandleSource
	CandleStore storage.CandleStore // nil disables candle persistence
	Detector    *detector.PumpDetector
	Tracker     *engine.Tracker
	Engine      *engine.Engine
	Registry    *population.Registry
	Manager     *promotion.Manager
	Sink        *sink.Sink
	Workers     int // evaluation workers, default 4
	Logger      *log.Logger
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Detector == nil || opts.Tracker == nil || opts.Engine == nil {
		return nil, fmt.Errorf("detector, tracker and engine are required")
	}
	if opts.Registry == nil || opts.Manager == nil || opts.Sink == nil {
		return nil, fmt.Errorf("registry, manager and sink are required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		source:      opts.Source,
		candleStore: opts.CandleStore,
		detector:    opts.Detector,
		tracker:     opts.Tracker,
		engine:      opts.Engine,
		registry:    opts.Registry,
		manager:     opts.Manager,
		sink:        opts.Sink,
		workers:     workers,
		logger:      logger,
	}, nil
}

// Run executes the pipeline until the context is cancelled or the source
// channel closes. Shutdown is graceful: no new signals are admitted,
// evaluations already at their horizon complete, and queued records are
// flushed to the repository before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	// The sink outlives the candle flow so trades recorded during drain
	// still reach the repository.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	var sinkWg sync.WaitGroup
	sinkWg.Add(1)
	go func() {
		defer sinkWg.Done()
		o.sink.Run(sinkCtx)
	}()

	// The scan loop must stop even when shutdown is triggered by the source
	// channel closing rather than by ctx.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Periodic promotion scans.
	var scanWg sync.WaitGroup
	scanWg.Add(1)
	go func() {
		defer scanWg.Done()
		o.manager.Run(runCtx)
	}()

	// Evaluation worker pool.
	evalCh := make(chan engine.Ready, 64)
	var evalWg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		evalWg.Add(1)
		go func() {
			defer evalWg.Done()
			for ready := range evalCh {
				o.evaluate(ready)
			}
		}()
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:      o.source,
		CandleStore: o.candleStore,
		Handler: func(handlerCtx context.Context, c *domain.Candle) {
			o.onCandle(handlerCtx, c, evalCh)
		},
		Logger: o.logger,
	})

	o.logger.Println("[orchestrator] pipeline started")
	runErr := runner.Run(runCtx)

	// Drain: reject new signals, let queued evaluations finish, stop the
	// scan loop, then flush the sink.
	o.tracker.Stop()
	close(evalCh)
	evalWg.Wait()
	cancel()
	scanWg.Wait()
	sinkCancel()
	sinkWg.Wait()

	o.logger.Printf("[orchestrator] pipeline stopped: %d candles, %d signals, %d trades",
		runner.Processed(), o.signalsDetected.Load(), o.tradesRecorded.Load())
	return runErr
}

// onCandle pushes one admitted candle through detection and horizon
// tracking. Runs on the single ingestion goroutine, so the detector needs
// no locking.
func (o *Orchestrator) onCandle(ctx context.Context, c *domain.Candle, evalCh chan<- engine.Ready) {
	observability.RecordCandleProcessed(c.Symbol, c.CloseTime)

	// Completed horizons first: the candle that completes a horizon must
	// not extend evaluations admitted by the signal it also triggers.
	for _, ready := range o.tracker.OnCandle(c) {
		evalCh <- ready
	}

	if sig := o.detector.OnCandle(c); sig != nil {
		o.signalsDetected.Add(1)
		o.logger.Printf("[orchestrator] %s signal on %s: confidence=%.1f price=%.2f%% volume=%.1fx",
			sig.Direction, sig.Symbol, sig.Confidence, sig.PriceChangePct, sig.VolumeMultiplier)
		observability.RecordSignal(string(sig.Direction), sig.Confidence)

		o.sink.PublishSignal(sig)
		o.tracker.Track(sig)
		o.manager.OnSignal(ctx, sig)
	}

	observability.UpdatePendingEvaluations(o.tracker.PendingCount())
	observability.UpdateSinkState(o.sink.QueueDepth(), o.sink.Degraded())
}

// evaluate replays one completed horizon against the whole population and
// feeds the results back into stats windows and the promotion manager.
func (o *Orchestrator) evaluate(ready engine.Ready) {
	results, err := o.engine.Evaluate(ready.Signal, o.registry.Configs(), ready.Candles)
	if err != nil {
		o.logger.Printf("[orchestrator] evaluate signal %s: %v", ready.Signal.SignalID, err)
		return
	}

	ctx := context.Background()
	for _, r := range results {
		if !o.registry.ApplyResult(r) {
			// Replayed signal for this strategy; everything downstream
			// already saw the trade.
			continue
		}
		o.tradesRecorded.Add(1)
		observability.RecordTradeSimulated(r.ExitReason)
		o.sink.PublishTrade(r)
		o.manager.ApplyResult(ctx, r)
	}
}

// SignalsDetected returns the number of signals emitted since start.
func (o *Orchestrator) SignalsDetected() int64 { return o.signalsDetected.Load() }

// TradesRecorded returns the number of trade results recorded since start.
func (o *Orchestrator) TradesRecorded() int64 { return o.tradesRecorded.Load() }
