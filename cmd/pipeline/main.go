// Package main runs the live pipeline: candle stream -> pump detection ->
// backtest fan-out -> promotion -> persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pump-strategy-lab/internal/detector"
	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/engine"
	"pump-strategy-lab/internal/execution"
	"pump-strategy-lab/internal/ingestion"
	"pump-strategy-lab/internal/observability"
	"pump-strategy-lab/internal/orchestrator"
	"pump-strategy-lab/internal/population"
	"pump-strategy-lab/internal/promotion"
	"pump-strategy-lab/internal/sink"
	"pump-strategy-lab/internal/storage"
	chstore "pump-strategy-lab/internal/storage/clickhouse"
	"pump-strategy-lab/internal/storage/memory"
	"pump-strategy-lab/internal/storage/migrations"
	pgstore "pump-strategy-lab/internal/storage/postgres"
)

func main() {
	wsEndpoint := flag.String("ws-endpoint", "wss://stream.binance.com:9443", "Exchange WebSocket endpoint")
	symbols := flag.String("symbols", "", "Comma-separated symbols to stream (e.g. BTCUSDT,ETHUSDT)")
	interval := flag.String("interval", "1m", "Kline interval")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	workers := flag.Int("workers", 4, "Signal evaluation workers")
	queueSize := flag.Int("queue-size", 4096, "Sink queue capacity")
	populationSize := flag.Int("population", 100, "Strategy population size")
	seed := flag.Int64("seed", 1, "Population generation seed")
	minConfidence := flag.Float64("min-confidence", 70, "Detector confidence threshold (0-100)")
	scanInterval := flag.Duration("scan-interval", 30*time.Minute, "Promotion scan interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags|log.Lshortfile)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("No symbols specified. Use --symbols")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, runOptions{
		wsEndpoint:     *wsEndpoint,
		symbols:        symbolList,
		interval:       *interval,
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		useMemory:      *useMemory,
		workers:        *workers,
		queueSize:      *queueSize,
		populationSize: *populationSize,
		seed:           *seed,
		minConfidence:  *minConfidence,
		scanInterval:   *scanInterval,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Pipeline error: %v", err)
	}
	logger.Println("Pipeline stopped")
}

type runOptions struct {
	wsEndpoint     string
	symbols        []string
	interval       string
	postgresDSN    string
	clickhouseDSN  string
	useMemory      bool
	workers        int
	queueSize      int
	populationSize int
	seed           int64
	minConfidence  float64
	scanInterval   time.Duration
}

// pipelineStores groups every store the pipeline touches.
type pipelineStores struct {
	candles     storage.CandleStore
	signals     storage.SignalStore
	trades      storage.TradeResultStore
	configs     storage.StrategyConfigStore
	bots        storage.BotStore
	transitions storage.TransitionStore

	close func()
}

func run(ctx context.Context, logger *log.Logger, opts runOptions) error {
	stores, err := setupStores(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer stores.close()

	// Load or seed the strategy population
	configs, err := loadPopulation(ctx, logger, stores.configs, opts)
	if err != nil {
		return err
	}
	registry := population.NewRegistry(configs)

	detectorConfig := detector.DefaultConfig()
	detectorConfig.MinConfidence = opts.minConfidence
	det, err := detector.New(detectorConfig)
	if err != nil {
		return err
	}

	// The tracker horizon must cover the slowest strategy plus the entry
	// candle, or timeouts would be classified early.
	maxHold := 0
	for _, c := range configs {
		if c.MaxHoldCandles > maxHold {
			maxHold = c.MaxHoldCandles
		}
	}
	tracker := engine.NewTracker(maxHold + 1)

	snk := sink.New(sink.Stores{
		Signals:     stores.signals,
		Trades:      stores.trades,
		Transitions: stores.transitions,
	}, opts.queueSize)

	promotionConfig := promotion.DefaultConfig()
	promotionConfig.ScanInterval = opts.scanInterval
	manager, err := promotion.NewManager(promotion.Options{
		Config:   promotionConfig,
		Registry: registry,
		BotStore: stores.bots,
		Sink:     snk,
		Executor: execution.NewLogExecutor(),
	})
	if err != nil {
		return fmt.Errorf("create promotion manager: %w", err)
	}

	// Cold restart: resume active bots from the bot store
	if err := manager.Restore(ctx); err != nil {
		return fmt.Errorf("restore bots: %w", err)
	}
	logger.Printf("Active bots restored: %d", len(manager.ActiveBots()))

	source := ingestion.NewWSKlineSource(opts.wsEndpoint, opts.symbols, opts.interval, nil)
	defer source.Close()

	orch, err := orchestrator.New(orchestrator.Options{
		Source:      source,
		CandleStore: stores.candles,
		Detector:    det,
		Tracker:     tracker,
		Engine:      engine.NewEngine(),
		Registry:    registry,
		Manager:     manager,
		Sink:        snk,
		Workers:     opts.workers,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	logger.Printf("Streaming %d symbols at interval %s, population %d", len(opts.symbols), opts.interval, registry.Size())
	return orch.Run(ctx)
}

// setupStores wires either the in-memory stores or postgres + clickhouse,
// running migrations on the database path.
func setupStores(ctx context.Context, logger *log.Logger, opts runOptions) (*pipelineStores, error) {
	if opts.useMemory {
		logger.Println("Using in-memory storage")
		return &pipelineStores{
			candles:     memory.NewCandleStore(),
			signals:     memory.NewSignalStore(),
			trades:      memory.NewTradeResultStore(),
			configs:     memory.NewStrategyConfigStore(),
			bots:        memory.NewBotStore(),
			transitions: memory.NewTransitionStore(),
			close:       func() {},
		}, nil
	}

	if opts.postgresDSN == "" || opts.clickhouseDSN == "" {
		return nil, fmt.Errorf("postgres-dsn and clickhouse-dsn are required without --use-memory")
	}

	pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	logger.Println("Connected to postgres and clickhouse, migrations applied")
	return &pipelineStores{
		candles:     chstore.NewCandleStore(conn),
		signals:     chstore.NewSignalStore(conn),
		trades:      chstore.NewTradeResultStore(conn),
		configs:     pgstore.NewStrategyConfigStore(pool),
		bots:        pgstore.NewBotStore(pool),
		transitions: pgstore.NewTransitionStore(pool),
		close: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

// loadPopulation returns the persisted strategy population, generating and
// persisting a fresh one when the store is empty. Configs are immutable, so
// a restart always resumes the same population.
func loadPopulation(ctx context.Context, logger *log.Logger, store storage.StrategyConfigStore, opts runOptions) ([]*domain.StrategyConfig, error) {
	existing, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load strategy configs: %w", err)
	}
	if len(existing) > 0 {
		logger.Printf("Loaded %d persisted strategy configs", len(existing))
		return existing, nil
	}

	genConfig := population.DefaultGeneratorConfig()
	genConfig.Count = opts.populationSize
	genConfig.Seed = opts.seed

	configs, err := population.Generate(genConfig)
	if err != nil {
		return nil, fmt.Errorf("generate population: %w", err)
	}
	if err := store.InsertBulk(ctx, configs); err != nil {
		return nil, fmt.Errorf("persist population: %w", err)
	}
	logger.Printf("Generated and persisted %d strategy configs (seed %d)", len(configs), opts.seed)
	return configs, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
