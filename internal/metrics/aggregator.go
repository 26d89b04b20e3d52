// Package metrics computes performance aggregates from recorded trade
// results, one aggregate per strategy.
package metrics

import (
	"context"
	"errors"
	"sort"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage"
)

// ErrNoTrades is returned when no trade results are available for aggregation.
var ErrNoTrades = errors.New("no trade results available for aggregation")

// Aggregator computes strategy aggregates from persisted trade results.
type Aggregator struct {
	tradeStore storage.TradeResultStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeResultStore) *Aggregator {
	return &Aggregator{tradeStore: tradeStore}
}

// ComputeAggregate computes the aggregate for a single strategy.
// Returns ErrNoTrades if the strategy has no recorded results.
func (a *Aggregator) ComputeAggregate(ctx context.Context, strategyID string) (*domain.StrategyAggregate, error) {
	results, err := a.tradeStore.GetByStrategyID(ctx, strategyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoTrades
		}
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoTrades
	}
	return computeFromResults(strategyID, results), nil
}

// ComputeAll computes aggregates for every strategy that has at least one
// recorded result, ordered by strategy_id ASC.
func (a *Aggregator) ComputeAll(ctx context.Context) ([]*domain.StrategyAggregate, error) {
	all, err := a.tradeStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoTrades
	}

	byStrategy := make(map[string][]*domain.TradeResult)
	for _, r := range all {
		byStrategy[r.StrategyID] = append(byStrategy[r.StrategyID], r)
	}

	ids := make([]string, 0, len(byStrategy))
	for id := range byStrategy {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	aggs := make([]*domain.StrategyAggregate, 0, len(ids))
	for _, id := range ids {
		aggs = append(aggs, computeFromResults(id, byStrategy[id]))
	}
	return aggs, nil
}
