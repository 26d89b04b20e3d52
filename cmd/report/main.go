// Package main renders the strategy rankings report from the persisted
// trade results, signals, bots and stage transitions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"pump-strategy-lab/internal/metrics"
	"pump-strategy-lab/internal/reporting"
	chstore "pump-strategy-lab/internal/storage/clickhouse"
	pgstore "pump-strategy-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	outputDir := flag.String("output-dir", "reports", "Output directory (empty writes markdown to stdout)")
	format := flag.String("format", "all", "Output format: markdown, csv, or all")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("postgres-dsn and clickhouse-dsn are required")
	}
	if *format != "markdown" && *format != "csv" && *format != "all" {
		logger.Fatalf("Unknown format: %s", *format)
	}

	ctx := context.Background()

	if err := run(ctx, logger, *postgresDSN, *clickhouseDSN, *outputDir, *format); err != nil {
		logger.Fatalf("Report error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, postgresDSN, clickhouseDSN, outputDir, format string) error {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer conn.Close()

	aggregator := metrics.NewAggregator(chstore.NewTradeResultStore(conn))
	generator := reporting.NewGenerator(
		aggregator,
		chstore.NewSignalStore(conn),
		pgstore.NewBotStore(pool),
		pgstore.NewTransitionStore(pool),
	)

	report, err := generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	logger.Printf("Report over %d strategies, %d trades, %d signals",
		report.StrategyCount, report.DataSummary.TotalTrades, report.DataSummary.TotalSignals)

	if outputDir == "" {
		fmt.Print(reporting.RenderMarkdown(report))
		return nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if format == "markdown" || format == "all" {
		path := filepath.Join(outputDir, "rankings.md")
		if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
		logger.Printf("Markdown report written: %s", path)
	}
	if format == "csv" || format == "all" {
		path := filepath.Join(outputDir, "rankings.csv")
		if err := os.WriteFile(path, []byte(reporting.RenderCSV(report.Rankings)), 0o644); err != nil {
			return fmt.Errorf("write csv report: %w", err)
		}
		logger.Printf("CSV report written: %s", path)
	}
	return nil
}
