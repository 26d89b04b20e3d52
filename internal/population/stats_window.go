package population

import (
	"sync"

	"pump-strategy-lab/internal/domain"
)

// StatsWindow is the single-writer aggregate for one strategy or bot stage.
// Apply serializes writers behind a per-window mutex; Snapshot gives readers
// a momentary consistent copy without blocking other windows.
type StatsWindow struct {
	mu    sync.Mutex
	stats domain.StrategyStats
	seen  map[string]struct{} // signal ids already counted, for idempotence
}

// NewStatsWindow creates an empty window for the given strategy.
func NewStatsWindow(strategyID string) *StatsWindow {
	return &StatsWindow{
		stats: domain.StrategyStats{StrategyID: strategyID},
		seen:  make(map[string]struct{}),
	}
}

// Apply folds one trade result into the aggregate. Returns false without
// changing anything when the signal was already counted: the result-into-stats
// update happens exactly once per (strategy, signal) pair.
func (w *StatsWindow) Apply(r *domain.TradeResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen[r.SignalID]; dup {
		return false
	}
	w.seen[r.SignalID] = struct{}{}

	w.stats.TotalTrades++
	if r.Pnl > 0 {
		w.stats.Wins++
		w.stats.GrossProfit += r.Pnl
	} else {
		w.stats.Losses++
		w.stats.GrossLoss += -r.Pnl
	}
	w.stats.TotalPnl += r.Pnl
	w.stats.SumPnlSq += r.Pnl * r.Pnl

	// Running peak-to-trough on the cumulative pnl curve.
	w.stats.Equity += r.Pnl
	if w.stats.Equity > w.stats.Peak {
		w.stats.Peak = w.stats.Equity
	}
	if dd := w.stats.Peak - w.stats.Equity; dd > w.stats.MaxDrawdown {
		w.stats.MaxDrawdown = dd
	}

	if r.ExitTime > w.stats.LastUpdated {
		w.stats.LastUpdated = r.ExitTime
	}
	return true
}

// Snapshot returns a consistent copy of the aggregate.
func (w *StatsWindow) Snapshot() domain.StrategyStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
