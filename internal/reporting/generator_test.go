package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/metrics"
	"pump-strategy-lab/internal/storage/memory"
)

type fixture struct {
	signals     *memory.SignalStore
	trades      *memory.TradeResultStore
	bots        *memory.BotStore
	transitions *memory.TransitionStore
	gen         *Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		signals:     memory.NewSignalStore(),
		trades:      memory.NewTradeResultStore(),
		bots:        memory.NewBotStore(),
		transitions: memory.NewTransitionStore(),
	}
	f.gen = NewGenerator(metrics.NewAggregator(f.trades), f.signals, f.bots, f.transitions).
		WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
	return f
}

func (f *fixture) seedTrades(t *testing.T, results []*domain.TradeResult) {
	t.Helper()
	if err := f.trades.InsertBulk(context.Background(), results); err != nil {
		t.Fatalf("seed trades: %v", err)
	}
}

func TestGenerate_RankingOrder(t *testing.T) {
	f := newFixture(t)
	f.seedTrades(t, []*domain.TradeResult{
		// strat-0001: pf 2.0, win rate 0.5
		{TradeID: "a1", StrategyID: "strat-0001", SignalID: "s1", EntryTime: 100, Pnl: 2.0},
		{TradeID: "a2", StrategyID: "strat-0001", SignalID: "s2", EntryTime: 200, Pnl: -1.0},
		// strat-0002: pf 4.0, win rate 0.5
		{TradeID: "b1", StrategyID: "strat-0002", SignalID: "s1", EntryTime: 100, Pnl: 4.0},
		{TradeID: "b2", StrategyID: "strat-0002", SignalID: "s2", EntryTime: 200, Pnl: -1.0},
		// strat-0003: pf undefined (no losses), ranks last despite pure wins
		{TradeID: "c1", StrategyID: "strat-0003", SignalID: "s1", EntryTime: 100, Pnl: 9.0},
	})

	report, err := f.gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"strat-0002", "strat-0001", "strat-0003"}
	if len(report.Rankings) != len(want) {
		t.Fatalf("expected %d rankings, got %d", len(want), len(report.Rankings))
	}
	for i, w := range want {
		if report.Rankings[i].StrategyID != w {
			t.Errorf("rank %d = %s, want %s", i+1, report.Rankings[i].StrategyID, w)
		}
		if report.Rankings[i].Rank != i+1 {
			t.Errorf("Rank field = %d, want %d", report.Rankings[i].Rank, i+1)
		}
	}
	if report.Rankings[2].ProfitFactorOK {
		t.Error("strat-0003 profit factor must be undefined")
	}
}

func TestGenerate_TieBrokenByWinRateThenID(t *testing.T) {
	f := newFixture(t)
	f.seedTrades(t, []*domain.TradeResult{
		// Both strategies pf 2.0. strat-0002 wins on win rate (2/3 vs 1/2).
		{TradeID: "a1", StrategyID: "strat-0001", SignalID: "s1", EntryTime: 100, Pnl: 2.0},
		{TradeID: "a2", StrategyID: "strat-0001", SignalID: "s2", EntryTime: 200, Pnl: -1.0},
		{TradeID: "b1", StrategyID: "strat-0002", SignalID: "s1", EntryTime: 100, Pnl: 1.0},
		{TradeID: "b2", StrategyID: "strat-0002", SignalID: "s2", EntryTime: 200, Pnl: 1.0},
		{TradeID: "b3", StrategyID: "strat-0002", SignalID: "s3", EntryTime: 300, Pnl: -1.0},
	})

	report, err := f.gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Rankings[0].StrategyID != "strat-0002" {
		t.Errorf("rank 1 = %s, want strat-0002 (higher win rate at equal pf)",
			report.Rankings[0].StrategyID)
	}
}

func TestGenerate_StagesAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedTrades(t, []*domain.TradeResult{
		{TradeID: "a1", StrategyID: "strat-0001", SignalID: "s1", EntryTime: 100, Pnl: 2.0},
		{TradeID: "a2", StrategyID: "strat-0001", SignalID: "s2", EntryTime: 200, Pnl: -1.0},
		{TradeID: "b1", StrategyID: "strat-0002", SignalID: "s1", EntryTime: 100, Pnl: 1.0},
		{TradeID: "b2", StrategyID: "strat-0002", SignalID: "s2", EntryTime: 200, Pnl: -2.0},
	})
	if err := f.bots.Insert(ctx, &domain.BotInstance{
		BotID: "bot-1", StrategyID: "strat-0001", Stage: domain.StageSimulated, PromotedAt: 5000,
	}); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	for _, s := range []*domain.PumpSignal{
		{SignalID: "s1", Symbol: "ABCUSDT", DetectedAt: 1000, Direction: domain.DirectionLong},
		{SignalID: "s2", Symbol: "XYZUSDT", DetectedAt: 4000, Direction: domain.DirectionShort},
	} {
		if err := f.signals.Insert(ctx, s); err != nil {
			t.Fatalf("seed signal: %v", err)
		}
	}
	if err := f.transitions.Insert(ctx, &domain.StageTransition{
		StrategyID: "strat-0001", From: domain.StageBacktest, To: domain.StageSimulated,
		Reason: "qualified", Timestamp: 5000, WindowTrades: 25,
	}); err != nil {
		t.Fatalf("seed transition: %v", err)
	}

	report, err := f.gen.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	byID := make(map[string]RankingRow)
	for _, r := range report.Rankings {
		byID[r.StrategyID] = r
	}
	if byID["strat-0001"].Stage != string(domain.StageSimulated) {
		t.Errorf("strat-0001 stage = %s, want SIMULATED", byID["strat-0001"].Stage)
	}
	if byID["strat-0002"].Stage != string(domain.StageBacktest) {
		t.Errorf("strat-0002 stage = %s, want BACKTEST", byID["strat-0002"].Stage)
	}

	ds := report.DataSummary
	if ds.TotalSignals != 2 || ds.TotalTrades != 4 || ds.Symbols != 2 {
		t.Errorf("summary = %d signals / %d trades / %d symbols, want 2/4/2",
			ds.TotalSignals, ds.TotalTrades, ds.Symbols)
	}
	if ds.DateRangeStart != 1000 || ds.DateRangeEnd != 4000 {
		t.Errorf("date range = [%d, %d], want [1000, 4000]", ds.DateRangeStart, ds.DateRangeEnd)
	}
	if len(report.Bots) != 1 || report.Bots[0].BotID != "bot-1" {
		t.Errorf("bot roster = %+v, want single bot-1", report.Bots)
	}
	if len(report.Transitions) != 1 || report.Transitions[0].Reason != "qualified" {
		t.Errorf("transitions = %+v, want single qualified row", report.Transitions)
	}
}

func TestGenerate_EmptyDataSet(t *testing.T) {
	f := newFixture(t)

	report, err := f.gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate on empty data: %v", err)
	}
	if len(report.Rankings) != 0 || report.StrategyCount != 0 {
		t.Errorf("expected empty report, got %d rankings", len(report.Rankings))
	}
}

func TestRenderMarkdown_UndefinedProfitFactor(t *testing.T) {
	f := newFixture(t)
	f.seedTrades(t, []*domain.TradeResult{
		{TradeID: "c1", StrategyID: "strat-0003", SignalID: "s1", EntryTime: 100, Pnl: 9.0},
	})

	report, err := f.gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "| n/a |") {
		t.Error("markdown must render undefined profit factor as n/a")
	}
	if !strings.Contains(md, "# Strategy Rankings Report") {
		t.Error("markdown missing report header")
	}
}

func TestRenderCSV(t *testing.T) {
	rows := []RankingRow{
		{Rank: 1, StrategyID: "strat-0002", Stage: "SIMULATED", TotalTrades: 2,
			WinRate: 0.5, ProfitFactor: 4.0, ProfitFactorOK: true, TotalPnl: 3.0},
		{Rank: 2, StrategyID: "strat-0003", Stage: "BACKTEST", TotalTrades: 1,
			WinRate: 1.0, TotalPnl: 9.0},
	}

	csv := RenderCSV(rows)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "rank,strategy_id,stage,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "4.000000") {
		t.Errorf("defined profit factor missing: %s", lines[1])
	}
	// Undefined profit factor is an empty field.
	if !strings.Contains(lines[2], ",1.000000,,") {
		t.Errorf("undefined profit factor must be empty field: %s", lines[2])
	}
}
