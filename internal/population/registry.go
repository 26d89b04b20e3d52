package population

import (
	"pump-strategy-lab/internal/domain"
)

// Registry is the long-lived owned collection of the strategy population:
// an immutable arena of configs plus a parallel map of id to stats window.
// Cross-strategy updates never block each other; the registry itself is
// immutable after construction so no registry-level lock is needed.
type Registry struct {
	order   []string // stable iteration order (generation order)
	configs map[string]*domain.StrategyConfig
	windows map[string]*StatsWindow
}

// NewRegistry builds a registry from a generated population.
func NewRegistry(configs []*domain.StrategyConfig) *Registry {
	r := &Registry{
		order:   make([]string, 0, len(configs)),
		configs: make(map[string]*domain.StrategyConfig, len(configs)),
		windows: make(map[string]*StatsWindow, len(configs)),
	}
	for _, c := range configs {
		r.order = append(r.order, c.StrategyID)
		r.configs[c.StrategyID] = c
		r.windows[c.StrategyID] = NewStatsWindow(c.StrategyID)
	}
	return r
}

// Configs returns the population in generation order. Callers must not
// mutate the returned configs.
func (r *Registry) Configs() []*domain.StrategyConfig {
	out := make([]*domain.StrategyConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.configs[id])
	}
	return out
}

// Config returns the config for one strategy id.
func (r *Registry) Config(strategyID string) (*domain.StrategyConfig, bool) {
	c, ok := r.configs[strategyID]
	return c, ok
}

// Size returns the population size.
func (r *Registry) Size() int {
	return len(r.order)
}

// ApplyResult folds a trade result into its strategy's window.
// Returns false for an unknown strategy or an already-counted signal.
func (r *Registry) ApplyResult(result *domain.TradeResult) bool {
	w, ok := r.windows[result.StrategyID]
	if !ok {
		return false
	}
	return w.Apply(result)
}

// Snapshot returns a momentary consistent copy of one strategy's stats.
func (r *Registry) Snapshot(strategyID string) (domain.StrategyStats, bool) {
	w, ok := r.windows[strategyID]
	if !ok {
		return domain.StrategyStats{}, false
	}
	return w.Snapshot(), true
}

// SnapshotAll returns per-strategy snapshots in generation order. Each entry
// is individually consistent; the scan holds no lock across strategies.
func (r *Registry) SnapshotAll() []domain.StrategyStats {
	out := make([]domain.StrategyStats, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.windows[id].Snapshot())
	}
	return out
}
