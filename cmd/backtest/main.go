// Package main replays stored candles through the detector and backtest
// engine offline, then renders strategy rankings for the replayed window.
// Nothing is written back to the databases; results live in memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pump-strategy-lab/internal/detector"
	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/engine"
	"pump-strategy-lab/internal/metrics"
	"pump-strategy-lab/internal/population"
	"pump-strategy-lab/internal/reporting"
	"pump-strategy-lab/internal/storage"
	chstore "pump-strategy-lab/internal/storage/clickhouse"
	"pump-strategy-lab/internal/storage/memory"
	pgstore "pump-strategy-lab/internal/storage/postgres"
)

func main() {
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (candle source)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (persisted population; optional)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to replay")
	fromTime := flag.String("from-time", "", "Replay window start (RFC3339, optional)")
	toTime := flag.String("to-time", "", "Replay window end (RFC3339, optional)")
	populationSize := flag.Int("population", 100, "Strategy population size when generating")
	seed := flag.Int64("seed", 1, "Population generation seed")
	minConfidence := flag.Float64("min-confidence", 70, "Detector confidence threshold (0-100)")
	outputDir := flag.String("output-dir", "reports", "Output directory for rendered reports")
	topN := flag.Int("top", 10, "Rankings rows to print to stdout")

	flag.Parse()

	logger := log.New(os.Stdout, "[backtest] ", log.LstdFlags)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("No symbols specified. Use --symbols")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("ClickHouse DSN is required. Use --clickhouse-dsn")
	}

	start, end, err := parseWindow(*fromTime, *toTime)
	if err != nil {
		logger.Fatalf("Invalid replay window: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling replay...", sig)
		cancel()
	}()

	if err := run(ctx, logger, options{
		clickhouseDSN:  *clickhouseDSN,
		postgresDSN:    *postgresDSN,
		symbols:        symbolList,
		start:          start,
		end:            end,
		populationSize: *populationSize,
		seed:           *seed,
		minConfidence:  *minConfidence,
		outputDir:      *outputDir,
		topN:           *topN,
	}); err != nil {
		logger.Fatalf("Backtest error: %v", err)
	}
}

type options struct {
	clickhouseDSN  string
	postgresDSN    string
	symbols        []string
	start, end     int64
	populationSize int
	seed           int64
	minConfidence  float64
	outputDir      string
	topN           int
}

func run(ctx context.Context, logger *log.Logger, opts options) error {
	conn, err := chstore.NewConn(ctx, opts.clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer conn.Close()
	candleStore := chstore.NewCandleStore(conn)

	configs, err := loadPopulation(ctx, logger, opts)
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

	maxHold := 0
	for _, c := range configs {
		if c.MaxHoldCandles > maxHold {
			maxHold = c.MaxHoldCandles
		}
	}
	tracker := engine.NewTracker(maxHold + 1)
	eng := engine.NewEngine()

	// Replay results are accumulated in memory only
	signalStore := memory.NewSignalStore()
	tradeStore := memory.NewTradeResultStore()

	var candlesReplayed, signalsDetected, tradesRecorded int
	for _, symbol := range opts.symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		candles, err := candleStore.GetByTimeRange(ctx, symbol, opts.start, opts.end)
		if err != nil {
			return fmt.Errorf("load candles for %s: %w", symbol, err)
		}
		logger.Printf("Replaying %d candles for %s", len(candles), symbol)

		for _, c := range candles {
			candlesReplayed++

			for _, ready := range tracker.OnCandle(c) {
				n, err := evaluate(ctx, eng, registry, tradeStore, ready)
				if err != nil {
					return err
				}
				tradesRecorded += n
			}

			if sig := det.OnCandle(c); sig != nil {
				signalsDetected++
				if err := signalStore.Insert(ctx, sig); err != nil {
					return fmt.Errorf("record signal: %w", err)
				}
				tracker.Track(sig)
			}
		}
	}

	if pending := tracker.PendingCount(); pending > 0 {
		logger.Printf("%d signals left without a full candle horizon (no trade recorded)", pending)
	}
	logger.Printf("Replayed %d candles: %d signals, %d trades", candlesReplayed, signalsDetected, tradesRecorded)

	return render(ctx, logger, signalStore, tradeStore, opts)
}

// evaluate fans a completed signal out over the population and records the
// per-strategy results.
func evaluate(ctx context.Context, eng *engine.Engine, registry *population.Registry, tradeStore storage.TradeResultStore, ready engine.Ready) (int, error) {
	results, err := eng.Evaluate(ready.Signal, registry.Configs(), ready.Candles)
	if err != nil {
		return 0, fmt.Errorf("evaluate signal %s: %w", ready.Signal.SignalID, err)
	}

	recorded := 0
	for _, r := range results {
		if !registry.ApplyResult(r) {
			continue
		}
		if err := tradeStore.Insert(ctx, r); err != nil {
			return recorded, fmt.Errorf("record trade %s: %w", r.TradeID, err)
		}
		recorded++
	}
	return recorded, nil
}

// render generates the rankings report over the replayed window and writes
// markdown + CSV to the output directory.
func render(ctx context.Context, logger *log.Logger, signalStore storage.SignalStore, tradeStore storage.TradeResultStore, opts options) error {
	aggregator := metrics.NewAggregator(tradeStore)
	generator := reporting.NewGenerator(aggregator, signalStore, memory.NewBotStore(), memory.NewTransitionStore())

	report, err := generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	mdPath := filepath.Join(opts.outputDir, "backtest_rankings.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	csvPath := filepath.Join(opts.outputDir, "backtest_rankings.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Rankings)), 0o644); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	logger.Printf("Reports written: %s, %s", mdPath, csvPath)

	// Top-N summary to stdout
	for i, row := range report.Rankings {
		if i >= opts.topN {
			break
		}
		pf := "n/a"
		if row.ProfitFactorOK {
			pf = fmt.Sprintf("%.2f", row.ProfitFactor)
		}
		logger.Printf("#%d %s trades=%d win_rate=%.1f%% pf=%s pnl=%.2f",
			row.Rank, row.StrategyID, row.TotalTrades, row.WinRate, pf, row.TotalPnl)
	}
	return nil
}

// loadPopulation uses the persisted population when a postgres DSN is given,
// otherwise generates one from the seed so replays stay reproducible.
func loadPopulation(ctx context.Context, logger *log.Logger, opts options) ([]*domain.StrategyConfig, error) {
	if opts.postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		configs, err := pgstore.NewStrategyConfigStore(pool).GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load strategy configs: %w", err)
		}
		if len(configs) > 0 {
			logger.Printf("Loaded %d persisted strategy configs", len(configs))
			return configs, nil
		}
		logger.Println("No persisted strategy configs, generating from seed")
	}

	genConfig := population.DefaultGeneratorConfig()
	genConfig.Count = opts.populationSize
	genConfig.Seed = opts.seed

	configs, err := population.Generate(genConfig)
	if err != nil {
		return nil, fmt.Errorf("generate population: %w", err)
	}
	logger.Printf("Generated %d strategy configs (seed %d)", len(configs), opts.seed)
	return configs, nil
}

func parseWindow(from, to string) (int64, int64, error) {
	start := int64(0)
	end := int64(math.MaxInt64)

	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return 0, 0, fmt.Errorf("parse from-time: %w", err)
		}
		start = t.UnixMilli()
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return 0, 0, fmt.Errorf("parse to-time: %w", err)
		}
		end = t.UnixMilli()
	}
	if end < start {
		return 0, 0, fmt.Errorf("to-time %s before from-time %s", to, from)
	}
	return start, end, nil
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
