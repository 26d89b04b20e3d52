package promotion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/engine"
	"pump-strategy-lab/internal/execution"
	"pump-strategy-lab/internal/idhash"
	"pump-strategy-lab/internal/population"
	"pump-strategy-lab/internal/storage"
)

// Config holds graduation and degradation thresholds.
type Config struct {
	MaxBots         int     // cap on concurrently promoted (SIMULATED+REAL) bots
	MinTrades       int     // BACKTEST -> SIMULATED: minimum sample size
	MinWinRate      float64 // percent, e.g. 60
	MinProfitFactor float64

	// SIMULATED -> REAL requires this many additional trades in the
	// SIMULATED window beyond the base MinTrades threshold family.
	MinExtraTradesForReal int

	// Degradation (SIMULATED/REAL -> RETIRED). Checked on every trade
	// result for REAL bots; at scan time for SIMULATED bots.
	DegradeMinTrades   int
	DegradeWinRate     float64 // retire below this trailing win rate, percent
	DegradeMaxDrawdown float64 // retire above this drawdown, quote currency

	ScanInterval time.Duration
}

// DefaultConfig returns promotion defaults mirroring the production pipeline.
func DefaultConfig() Config {
	return Config{
		MaxBots:               10,
		MinTrades:             20,
		MinWinRate:            60,
		MinProfitFactor:       1.5,
		MinExtraTradesForReal: 10,
		DegradeMinTrades:      10,
		DegradeWinRate:        35,
		DegradeMaxDrawdown:    25,
		ScanInterval:          30 * time.Minute,
	}
}

// Validate fails fast on invalid thresholds.
func (c Config) Validate() error {
	if c.MaxBots <= 0 {
		return fmt.Errorf("max_bots must be positive, got %d", c.MaxBots)
	}
	if c.MinTrades <= 0 {
		return fmt.Errorf("min_trades_for_promotion must be positive, got %d", c.MinTrades)
	}
	if c.MinWinRate < 0 || c.MinWinRate > 100 {
		return fmt.Errorf("min_win_rate_for_promotion must be in [0,100], got %v", c.MinWinRate)
	}
	if c.MinProfitFactor <= 0 {
		return fmt.Errorf("min_profit_factor must be positive, got %v", c.MinProfitFactor)
	}
	if c.MinExtraTradesForReal < 0 {
		return fmt.Errorf("extra trades for REAL must be non-negative, got %d", c.MinExtraTradesForReal)
	}
	if c.DegradeWinRate < 0 || c.DegradeWinRate > 100 {
		return fmt.Errorf("degrade win rate must be in [0,100], got %v", c.DegradeWinRate)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %v", c.ScanInterval)
	}
	return nil
}

// TransitionSink receives append-only stage transition records.
type TransitionSink interface {
	PublishTransition(t *domain.StageTransition)
}

// botState binds a bot instance to its stage-local stats window.
type botState struct {
	inst   domain.BotInstance
	window *population.StatsWindow
}

// Manager runs the promotion state machine over the strategy population.
//
// The manager is the single writer of bot state; the scan takes momentary
// per-strategy snapshots from the registry rather than holding a lock across
// ongoing trade evaluation.
type Manager struct {
	config   Config
	registry *population.Registry
	botStore storage.BotStore
	sink     TransitionSink
	executor execution.Executor
	clock    func() int64 // ms

	// The mutex guards the maps below: Scan, ApplyResult, and OnSignal can
	// run from different goroutines.
	mu         sync.Mutex
	bots       map[string]*botState // bot_id -> state, active bots only
	byStrategy map[string]*botState // strategy_id -> active bot
	promoted   map[string]bool      // strategies no longer BACKTEST candidates
	retired    map[string]bool      // terminal; never re-enters the pipeline
}

// Options for creating a Manager.
type Options struct {
	Config   Config
	Registry *population.Registry
	BotStore storage.BotStore
	Sink     TransitionSink
	Executor execution.Executor
	Clock    func() int64 // optional, defaults to wall clock ms
}

// NewManager creates a promotion manager.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("promotion config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	return &Manager{
		config:     opts.Config,
		registry:   opts.Registry,
		botStore:   opts.BotStore,
		sink:       opts.Sink,
		executor:   opts.Executor,
		clock:      clock,
		bots:       make(map[string]*botState),
		byStrategy: make(map[string]*botState),
		promoted:   make(map[string]bool),
		retired:    make(map[string]bool),
	}, nil
}

// Restore loads active bots from storage after a cold restart. Stage and
// config survive; stage windows start empty (live performance is judged on
// its own merits after restart, not on pre-restart samples).
func (m *Manager) Restore(ctx context.Context) error {
	if m.botStore == nil {
		return nil
	}

	active, err := m.botStore.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("restore bots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range active {
		if _, known := m.registry.Config(b.StrategyID); !known {
			log.Printf("[promotion] skipping bot %s: strategy %s not in population", b.BotID, b.StrategyID)
			continue
		}
		st := &botState{inst: *b, window: population.NewStatsWindow(b.StrategyID)}
		m.bots[b.BotID] = st
		m.byStrategy[b.StrategyID] = st
		m.promoted[b.StrategyID] = true
	}

	log.Printf("[promotion] restored %d active bots", len(m.bots))
	return nil
}

// Run executes periodic promotion scans until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan performs one idempotent promotion pass: a fresh evaluation of current
// statistics. A missed scan only delays a transition.
func (m *Manager) Scan(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scanSimulatedLocked(ctx)
	m.scanBacktestLocked(ctx)
}

// scanBacktestLocked promotes qualifying BACKTEST strategies into SIMULATED
// bots, subject to the capacity bound.
func (m *Manager) scanBacktestLocked(ctx context.Context) {
	type candidate struct {
		stats domain.StrategyStats
		pf    float64
	}

	var candidates []candidate
	for _, stats := range m.registry.SnapshotAll() {
		if m.promoted[stats.StrategyID] || m.retired[stats.StrategyID] {
			continue
		}
		pf, ok := m.qualifies(&stats, m.config.MinTrades)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{stats: stats, pf: pf})
	}

	// Best first; ranking is deterministic given identical statistics.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].pf != candidates[j].pf {
			return candidates[i].pf > candidates[j].pf
		}
		if wi, wj := candidates[i].stats.WinRate(), candidates[j].stats.WinRate(); wi != wj {
			return wi > wj
		}
		return candidates[i].stats.StrategyID < candidates[j].stats.StrategyID
	})

	for _, c := range candidates {
		if len(m.bots) >= m.config.MaxBots {
			weakest := m.weakestBotLocked()
			if weakest == nil || !m.outranksLocked(c.pf, c.stats.WinRate(), weakest) {
				continue
			}
			m.retireLocked(ctx, weakest, "capacity eviction by stronger candidate")
		}
		m.promoteToSimulatedLocked(ctx, c.stats, c.pf)
	}
}

// scanSimulatedLocked handles SIMULATED bots: degradation first, then
// promotion to REAL against the SIMULATED-stage window only.
func (m *Manager) scanSimulatedLocked(ctx context.Context) {
	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := m.bots[id]
		if b.inst.Stage != domain.StageSimulated {
			continue
		}

		stats := b.window.Snapshot()
		if m.degraded(&stats) {
			m.retireLocked(ctx, b, "degraded simulated performance")
			continue
		}

		pf, ok := m.qualifies(&stats, m.config.MinTrades+m.config.MinExtraTradesForReal)
		if !ok {
			continue
		}
		m.advanceLocked(ctx, b, domain.StageReal, &stats, pf, "simulated thresholds met")
	}
}

// ApplyResult routes a trade result to the bot tracking that strategy, if
// any, and runs the low-latency degradation check for REAL bots. Stage
// windows are fresh per stage; backtest history never mixes in.
func (m *Manager) ApplyResult(ctx context.Context, result *domain.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.byStrategy[result.StrategyID]
	if !ok {
		return
	}
	if !b.window.Apply(result) {
		return // already counted for this signal
	}

	// Real capital exposure is bounded per result, not per scan.
	if b.inst.Stage == domain.StageReal {
		stats := b.window.Snapshot()
		if m.degraded(&stats) {
			m.retireLocked(ctx, b, "degraded real performance")
		}
	}
}

// OnSignal emits trade intents for REAL-stage bots whose strategy triggers
// on the signal.
func (m *Manager) OnSignal(ctx context.Context, signal *domain.PumpSignal) {
	if m.executor == nil {
		return
	}

	m.mu.Lock()
	var intents []*domain.TradeIntent
	for _, b := range m.bots {
		if b.inst.Stage != domain.StageReal {
			continue
		}
		cfg, ok := m.registry.Config(b.inst.StrategyID)
		if !ok || !engine.Triggers(cfg, signal) {
			continue
		}
		intents = append(intents, &domain.TradeIntent{
			BotID:     b.inst.BotID,
			Symbol:    signal.Symbol,
			Direction: cfg.Direction,
			Size:      cfg.PositionSizeQuote,
			Timestamp: signal.DetectedAt,
		})
	}
	m.mu.Unlock()

	for _, intent := range intents {
		if err := m.executor.Submit(ctx, intent); err != nil {
			log.Printf("[promotion] submit intent for bot %s: %v", intent.BotID, err)
		}
	}
}

// ActiveBots returns a snapshot of non-retired bots, ordered by bot id.
func (m *Manager) ActiveBots() []domain.BotInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.BotInstance, 0, len(m.bots))
	for _, b := range m.bots {
		out = append(out, b.inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
	return out
}

// BotStats returns the stage window snapshot for a strategy's active bot.
func (m *Manager) BotStats(strategyID string) (domain.StrategyStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.byStrategy[strategyID]
	if !ok {
		return domain.StrategyStats{}, false
	}
	return b.window.Snapshot(), true
}

// qualifies checks the graduation threshold family against a stats window.
// Returns the profit factor and whether all thresholds pass. A window with
// zero gross loss has an undefined profit factor: insufficient data.
func (m *Manager) qualifies(stats *domain.StrategyStats, minTrades int) (float64, bool) {
	if stats.TotalTrades < minTrades {
		return 0, false
	}
	if stats.WinRate() < m.config.MinWinRate {
		return 0, false
	}
	pf, ok := stats.ProfitFactor()
	if !ok || pf < m.config.MinProfitFactor {
		return 0, false
	}
	return pf, true
}

// degraded checks the trailing-window risk control thresholds.
func (m *Manager) degraded(stats *domain.StrategyStats) bool {
	if stats.TotalTrades < m.config.DegradeMinTrades {
		return false
	}
	return stats.WinRate() < m.config.DegradeWinRate || stats.MaxDrawdown > m.config.DegradeMaxDrawdown
}

// rankLocked returns a bot's (profit factor, win rate) ranking key. A stage
// window that has not yet produced a defined profit factor falls back to the
// strategy's backtest statistics so young bots are not evicted on no data.
func (m *Manager) rankLocked(b *botState) (float64, float64) {
	stats := b.window.Snapshot()
	if pf, ok := stats.ProfitFactor(); ok {
		return pf, stats.WinRate()
	}
	if reg, ok := m.registry.Snapshot(b.inst.StrategyID); ok {
		if pf, defined := reg.ProfitFactor(); defined {
			return pf, reg.WinRate()
		}
	}
	return -1, stats.WinRate()
}

// weakestBotLocked returns the active bot with the lowest ranking key,
// ties broken by bot id for determinism.
func (m *Manager) weakestBotLocked() *botState {
	var weakest *botState
	var weakestPF, weakestWR float64

	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := m.bots[id]
		pf, wr := m.rankLocked(b)
		if weakest == nil || pf < weakestPF || (pf == weakestPF && wr < weakestWR) {
			weakest, weakestPF, weakestWR = b, pf, wr
		}
	}
	return weakest
}

// outranksLocked reports whether a candidate's (pf, win rate) beats the
// bot's ranking key.
func (m *Manager) outranksLocked(pf, winRate float64, b *botState) bool {
	botPF, botWR := m.rankLocked(b)
	if pf != botPF {
		return pf > botPF
	}
	return winRate > botWR
}

// promoteToSimulatedLocked creates a SIMULATED bot with a fresh stats window
// and freezes the backtest statistics into the transition record.
func (m *Manager) promoteToSimulatedLocked(ctx context.Context, stats domain.StrategyStats, pf float64) {
	now := m.clock()
	botID := idhash.ComputeBotID(stats.StrategyID, string(domain.StageSimulated), now)

	inst := domain.BotInstance{
		BotID:      botID,
		StrategyID: stats.StrategyID,
		Stage:      domain.StageSimulated,
		CreatedAt:  now,
		PromotedAt: now,
	}
	st := &botState{inst: inst, window: population.NewStatsWindow(stats.StrategyID)}
	m.bots[botID] = st
	m.byStrategy[stats.StrategyID] = st
	m.promoted[stats.StrategyID] = true

	if m.botStore != nil {
		if err := m.botStore.Insert(ctx, &inst); err != nil {
			log.Printf("[promotion] persist bot %s: %v", botID, err)
		}
	}
	m.publishTransition(&stats, botID, domain.StageBacktest, domain.StageSimulated, pf, "backtest thresholds met")

	log.Printf("[promotion] %s BACKTEST->SIMULATED bot=%s trades=%d win_rate=%.1f pf=%.2f",
		stats.StrategyID, botID, stats.TotalTrades, stats.WinRate(), pf)
}

// advanceLocked moves an existing bot forward (SIMULATED -> REAL) with a
// fresh stats window for the new stage.
func (m *Manager) advanceLocked(ctx context.Context, b *botState, to domain.Stage, stats *domain.StrategyStats, pf float64, reason string) {
	next, err := Transition(b.inst.Stage, to)
	if err != nil {
		log.Printf("[promotion] bot %s: %v", b.inst.BotID, err)
		return
	}

	from := b.inst.Stage
	now := m.clock()
	b.inst.Stage = next
	b.inst.PromotedAt = now
	b.window = population.NewStatsWindow(b.inst.StrategyID)

	if m.botStore != nil {
		if err := m.botStore.UpdateStage(ctx, b.inst.BotID, next, now); err != nil {
			log.Printf("[promotion] persist stage for bot %s: %v", b.inst.BotID, err)
		}
	}
	m.publishTransition(stats, b.inst.BotID, from, next, pf, reason)

	log.Printf("[promotion] %s %s->%s bot=%s trades=%d win_rate=%.1f",
		b.inst.StrategyID, from, next, b.inst.BotID, stats.TotalTrades, stats.WinRate())
}

// retireLocked demotes a bot to RETIRED. Terminal: the strategy id never
// re-enters the pipeline; a fresh config with a new id is the recovery path.
func (m *Manager) retireLocked(ctx context.Context, b *botState, reason string) {
	next, err := Transition(b.inst.Stage, domain.StageRetired)
	if err != nil {
		log.Printf("[promotion] bot %s: %v", b.inst.BotID, err)
		return
	}

	from := b.inst.Stage
	now := m.clock()
	stats := b.window.Snapshot()
	pf, _ := stats.ProfitFactor()

	b.inst.Stage = next
	b.inst.PromotedAt = now
	delete(m.bots, b.inst.BotID)
	delete(m.byStrategy, b.inst.StrategyID)
	m.retired[b.inst.StrategyID] = true

	if m.botStore != nil {
		if err := m.botStore.UpdateStage(ctx, b.inst.BotID, next, now); err != nil {
			log.Printf("[promotion] persist stage for bot %s: %v", b.inst.BotID, err)
		}
	}
	m.publishTransition(&stats, b.inst.BotID, from, next, pf, reason)

	log.Printf("[promotion] %s %s->RETIRED bot=%s reason=%q", b.inst.StrategyID, from, b.inst.BotID, reason)
}

func (m *Manager) publishTransition(stats *domain.StrategyStats, botID string, from, to domain.Stage, pf float64, reason string) {
	if m.sink == nil {
		return
	}
	m.sink.PublishTransition(&domain.StageTransition{
		StrategyID:     stats.StrategyID,
		BotID:          botID,
		From:           from,
		To:             to,
		Reason:         reason,
		Timestamp:      m.clock(),
		WindowTrades:   stats.TotalTrades,
		WindowWinRate:  stats.WinRate(),
		WindowProfitPF: pf,
	})
}
