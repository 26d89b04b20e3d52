package promotion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/execution"
	"pump-strategy-lab/internal/population"
	"pump-strategy-lab/internal/storage/memory"
)

// captureSink records published transitions.
type captureSink struct {
	transitions []*domain.StageTransition
}

func (s *captureSink) PublishTransition(t *domain.StageTransition) {
	s.transitions = append(s.transitions, t)
}

// openConfig builds a strategy whose entry trigger accepts any signal.
func openConfig(id string) *domain.StrategyConfig {
	return &domain.StrategyConfig{
		StrategyID:        id,
		Direction:         domain.DirectionLong,
		TakeProfitPct:     2,
		StopLossPct:       1,
		MaxHoldCandles:    10,
		PositionSizeQuote: 50,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinTrades = 20
	cfg.MinWinRate = 60
	cfg.MinProfitFactor = 1.5
	cfg.ScanInterval = time.Minute
	return cfg
}

type fixture struct {
	registry *population.Registry
	manager  *Manager
	sink     *captureSink
	executor *execution.CaptureExecutor
	bots     *memory.BotStore
	now      int64
}

func newFixture(t *testing.T, cfg Config, strategies ...*domain.StrategyConfig) *fixture {
	t.Helper()

	f := &fixture{
		registry: population.NewRegistry(strategies),
		sink:     &captureSink{},
		executor: execution.NewCaptureExecutor(),
		bots:     memory.NewBotStore(),
		now:      1_700_000_000_000,
	}

	mgr, err := NewManager(Options{
		Config:   cfg,
		Registry: f.registry,
		BotStore: f.bots,
		Sink:     f.sink,
		Executor: f.executor,
		Clock: func() int64 {
			f.now += 1000
			return f.now
		},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	f.manager = mgr
	return f
}

// feedResults applies trades to a strategy's backtest window:
// wins of +winPnl then losses of -lossPnl.
func (f *fixture) feedResults(strategyID string, wins, losses int, winPnl, lossPnl float64) {
	n := 0
	for i := 0; i < wins; i++ {
		n++
		f.registry.ApplyResult(&domain.TradeResult{
			TradeID: fmt.Sprintf("%s-w%d", strategyID, i), StrategyID: strategyID,
			SignalID: fmt.Sprintf("%s-sig%d", strategyID, n), Pnl: winPnl,
		})
	}
	for i := 0; i < losses; i++ {
		n++
		f.registry.ApplyResult(&domain.TradeResult{
			TradeID: fmt.Sprintf("%s-l%d", strategyID, i), StrategyID: strategyID,
			SignalID: fmt.Sprintf("%s-sig%d", strategyID, n), Pnl: -lossPnl,
		})
	}
}

func TestScan_PromotesQualifyingStrategy(t *testing.T) {
	f := newFixture(t, testConfig(), openConfig("strat-0001"))
	ctx := context.Background()

	// 25 trades, 16 wins: win rate 64%, profit factor 16*2.25/9*2 = 2.0.
	f.feedResults("strat-0001", 16, 9, 2.25, 2.0)

	f.manager.Scan(ctx)

	bots := f.manager.ActiveBots()
	if len(bots) != 1 {
		t.Fatalf("Expected 1 bot after scan, got %d", len(bots))
	}
	if bots[0].Stage != domain.StageSimulated {
		t.Errorf("Stage = %s, want SIMULATED", bots[0].Stage)
	}

	// Promotion resets the statistics window.
	stats, ok := f.manager.BotStats("strat-0001")
	if !ok {
		t.Fatal("BotStats: no active bot for promoted strategy")
	}
	if stats.TotalTrades != 0 {
		t.Errorf("fresh window TotalTrades = %d, want 0", stats.TotalTrades)
	}

	if len(f.sink.transitions) != 1 {
		t.Fatalf("Expected 1 transition record, got %d", len(f.sink.transitions))
	}
	tr := f.sink.transitions[0]
	if tr.From != domain.StageBacktest || tr.To != domain.StageSimulated {
		t.Errorf("transition %s->%s, want BACKTEST->SIMULATED", tr.From, tr.To)
	}
	if tr.WindowTrades != 25 {
		t.Errorf("frozen window trades = %d, want 25", tr.WindowTrades)
	}

	// Bot persisted for cold restart.
	persisted, err := f.bots.GetActive(ctx)
	if err != nil || len(persisted) != 1 {
		t.Errorf("bot not persisted: %v (%d)", err, len(persisted))
	}
}

func TestScan_InsufficientDataNoPromotion(t *testing.T) {
	f := newFixture(t, testConfig(), openConfig("strat-0001"), openConfig("strat-0002"), openConfig("strat-0003"))
	ctx := context.Background()

	// Below min trades.
	f.feedResults("strat-0001", 10, 2, 2, 1)
	// Enough trades, low win rate.
	f.feedResults("strat-0002", 10, 15, 2, 1)
	// All wins: zero gross loss, profit factor undefined.
	f.feedResults("strat-0003", 25, 0, 2, 0)

	f.manager.Scan(ctx)

	if n := len(f.manager.ActiveBots()); n != 0 {
		t.Errorf("Expected no promotions, got %d bots", n)
	}
}

func TestScan_IdempotentAcrossRepeats(t *testing.T) {
	f := newFixture(t, testConfig(), openConfig("strat-0001"))
	ctx := context.Background()

	f.feedResults("strat-0001", 16, 9, 2.25, 2.0)

	f.manager.Scan(ctx)
	f.manager.Scan(ctx)
	f.manager.Scan(ctx)

	if n := len(f.manager.ActiveBots()); n != 1 {
		t.Errorf("repeated scans created %d bots, want 1", n)
	}
	if n := len(f.sink.transitions); n != 1 {
		t.Errorf("repeated scans recorded %d transitions, want 1", n)
	}
}

func TestScan_CapacityBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBots = 2

	f := newFixture(t, cfg, openConfig("strat-0001"), openConfig("strat-0002"), openConfig("strat-0003"))
	ctx := context.Background()

	// Three qualifying strategies with distinct profit factors.
	f.feedResults("strat-0001", 18, 7, 3, 2) // pf ~3.86
	f.feedResults("strat-0002", 16, 9, 2.25, 2)
	f.feedResults("strat-0003", 15, 10, 2.2, 2) // weakest

	f.manager.Scan(ctx)

	bots := f.manager.ActiveBots()
	if len(bots) != 2 {
		t.Fatalf("capacity bound violated: %d bots, want 2", len(bots))
	}

	promoted := map[string]bool{}
	for _, b := range bots {
		promoted[b.StrategyID] = true
	}
	if !promoted["strat-0001"] || !promoted["strat-0002"] {
		t.Errorf("Expected the two strongest strategies promoted, got %v", promoted)
	}
}

func TestScan_CapacityEvictionByStrongerCandidate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBots = 2

	f := newFixture(t, cfg, openConfig("strat-0001"), openConfig("strat-0002"), openConfig("strat-0003"))
	ctx := context.Background()

	f.feedResults("strat-0001", 18, 7, 3, 2)
	f.feedResults("strat-0002", 16, 9, 2.25, 2)
	f.manager.Scan(ctx)

	// A later, stronger candidate evicts the weakest promoted bot.
	f.feedResults("strat-0003", 22, 3, 4, 1) // pf 29+
	f.manager.Scan(ctx)

	bots := f.manager.ActiveBots()
	if len(bots) != 2 {
		t.Fatalf("capacity bound violated after eviction: %d bots", len(bots))
	}
	ids := map[string]bool{}
	for _, b := range bots {
		ids[b.StrategyID] = true
	}
	if !ids["strat-0001"] || !ids["strat-0003"] {
		t.Errorf("Expected strat-0002 evicted, active: %v", ids)
	}

	// The evicted strategy is terminal and never re-promoted.
	f.manager.Scan(ctx)
	for _, b := range f.manager.ActiveBots() {
		if b.StrategyID == "strat-0002" {
			t.Error("retired strategy re-entered the pipeline")
		}
	}
}

func TestSimulatedToReal_UsesStageWindowOnly(t *testing.T) {
	cfg := testConfig()
	cfg.MinTrades = 2
	cfg.MinExtraTradesForReal = 1
	cfg.DegradeMinTrades = 100 // keep degradation out of this test

	f := newFixture(t, cfg, openConfig("strat-0001"))
	ctx := context.Background()

	f.feedResults("strat-0001", 2, 1, 3, 1)
	f.manager.Scan(ctx)

	if bots := f.manager.ActiveBots(); len(bots) != 1 || bots[0].Stage != domain.StageSimulated {
		t.Fatalf("setup: expected one SIMULATED bot")
	}

	// Scan again: the SIMULATED window is empty, backtest samples must not
	// carry over into the SIMULATED -> REAL decision.
	f.manager.Scan(ctx)
	if bots := f.manager.ActiveBots(); bots[0].Stage != domain.StageSimulated {
		t.Fatal("bot advanced to REAL on backtest statistics")
	}

	// Feed the simulated window: 2 wins, 1 loss (needs 3 = MinTrades+extra).
	for i, pnl := range []float64{2, 2, -1} {
		f.manager.ApplyResult(ctx, &domain.TradeResult{
			TradeID: fmt.Sprintf("sim-%d", i), StrategyID: "strat-0001",
			SignalID: fmt.Sprintf("sim-sig-%d", i), Pnl: pnl,
		})
	}

	f.manager.Scan(ctx)
	bots := f.manager.ActiveBots()
	if bots[0].Stage != domain.StageReal {
		t.Errorf("Stage = %s, want REAL", bots[0].Stage)
	}

	// REAL stage starts with a fresh window again.
	stats, _ := f.manager.BotStats("strat-0001")
	if stats.TotalTrades != 0 {
		t.Errorf("REAL window TotalTrades = %d, want 0", stats.TotalTrades)
	}
}

func TestRealBot_DemotedOnDegradedResults(t *testing.T) {
	cfg := testConfig()
	cfg.MinTrades = 2
	cfg.MinExtraTradesForReal = 1
	cfg.DegradeMinTrades = 3
	cfg.DegradeWinRate = 50
	cfg.DegradeMaxDrawdown = 1000

	f := newFixture(t, cfg, openConfig("strat-0001"))
	ctx := context.Background()

	f.feedResults("strat-0001", 2, 1, 3, 1)
	f.manager.Scan(ctx)
	for i, pnl := range []float64{2, 2, -1} {
		f.manager.ApplyResult(ctx, &domain.TradeResult{
			TradeID: fmt.Sprintf("sim-%d", i), StrategyID: "strat-0001",
			SignalID: fmt.Sprintf("sim-sig-%d", i), Pnl: pnl,
		})
	}
	f.manager.Scan(ctx)
	if f.manager.ActiveBots()[0].Stage != domain.StageReal {
		t.Fatal("setup: expected REAL bot")
	}

	// Three straight losses on real capital: demoted per-result, without
	// waiting for the next scan.
	for i := 0; i < 3; i++ {
		f.manager.ApplyResult(ctx, &domain.TradeResult{
			TradeID: fmt.Sprintf("real-%d", i), StrategyID: "strat-0001",
			SignalID: fmt.Sprintf("real-sig-%d", i), Pnl: -2,
		})
	}

	if n := len(f.manager.ActiveBots()); n != 0 {
		t.Fatalf("degraded REAL bot still active (%d bots)", n)
	}

	last := f.sink.transitions[len(f.sink.transitions)-1]
	if last.From != domain.StageReal || last.To != domain.StageRetired {
		t.Errorf("last transition %s->%s, want REAL->RETIRED", last.From, last.To)
	}

	// Persisted stage reflects retirement.
	active, _ := f.bots.GetActive(ctx)
	if len(active) != 0 {
		t.Errorf("retired bot still active in store")
	}
}

func TestOnSignal_IntentsForRealBotsOnly(t *testing.T) {
	cfg := testConfig()
	cfg.MinTrades = 2
	cfg.MinExtraTradesForReal = 1
	cfg.DegradeMinTrades = 100

	f := newFixture(t, cfg, openConfig("strat-0001"), openConfig("strat-0002"))
	ctx := context.Background()

	// strat-0001 reaches REAL, strat-0002 stays SIMULATED.
	f.feedResults("strat-0001", 2, 1, 3, 1)
	f.feedResults("strat-0002", 2, 1, 3, 1)
	f.manager.Scan(ctx)
	for i, pnl := range []float64{2, 2, -1} {
		f.manager.ApplyResult(ctx, &domain.TradeResult{
			TradeID: fmt.Sprintf("sim-%d", i), StrategyID: "strat-0001",
			SignalID: fmt.Sprintf("sim-sig-%d", i), Pnl: pnl,
		})
	}
	f.manager.Scan(ctx)

	signal := &domain.PumpSignal{
		SignalID:   "sig-live",
		Symbol:     "BTCUSDT",
		DetectedAt: 1_700_000_100_000,
		Direction:  domain.DirectionLong,
		Confidence: 90, VolumeMultiplier: 5,
	}
	f.manager.OnSignal(ctx, signal)

	intents := f.executor.Intents()
	if len(intents) != 1 {
		t.Fatalf("Expected 1 intent (REAL bot only), got %d", len(intents))
	}
	if intents[0].Symbol != "BTCUSDT" || intents[0].Size != 50 {
		t.Errorf("intent mismatch: %+v", intents[0])
	}
}

func TestRestore_ColdRestart(t *testing.T) {
	f := newFixture(t, testConfig(), openConfig("strat-0001"))
	ctx := context.Background()

	f.feedResults("strat-0001", 16, 9, 2.25, 2.0)
	f.manager.Scan(ctx)
	botID := f.manager.ActiveBots()[0].BotID

	// Fresh manager over the same store: stage and binding survive.
	restored, err := NewManager(Options{
		Config:   testConfig(),
		Registry: population.NewRegistry([]*domain.StrategyConfig{openConfig("strat-0001")}),
		BotStore: f.bots,
		Sink:     &captureSink{},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	bots := restored.ActiveBots()
	if len(bots) != 1 || bots[0].BotID != botID {
		t.Fatalf("restored bots = %+v, want bot %s", bots, botID)
	}
	if bots[0].Stage != domain.StageSimulated {
		t.Errorf("restored stage = %s, want SIMULATED", bots[0].Stage)
	}

	// The restored window is fresh.
	stats, _ := restored.BotStats("strat-0001")
	if stats.TotalTrades != 0 {
		t.Errorf("restored window TotalTrades = %d, want 0", stats.TotalTrades)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero max bots", func(c *Config) { c.MaxBots = 0 }, true},
		{"zero min trades", func(c *Config) { c.MinTrades = 0 }, true},
		{"win rate above 100", func(c *Config) { c.MinWinRate = 120 }, true},
		{"zero profit factor", func(c *Config) { c.MinProfitFactor = 0 }, true},
		{"negative extra trades", func(c *Config) { c.MinExtraTradesForReal = -1 }, true},
		{"zero scan interval", func(c *Config) { c.ScanInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
