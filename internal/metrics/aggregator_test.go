package metrics

import (
	"context"
	"errors"
	"testing"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/storage/memory"
)

func seedResults(t *testing.T, store *memory.TradeResultStore, results []*domain.TradeResult) {
	t.Helper()
	if err := store.InsertBulk(context.Background(), results); err != nil {
		t.Fatalf("seed results: %v", err)
	}
}

func TestAggregator_ComputeAggregate(t *testing.T) {
	store := memory.NewTradeResultStore()
	seedResults(t, store, []*domain.TradeResult{
		{TradeID: "t1", StrategyID: "strat-0001", SignalID: "s1", EntryTime: 100, Pnl: 2.0, ExitReason: domain.ExitReasonTakeProfit},
		{TradeID: "t2", StrategyID: "strat-0001", SignalID: "s2", EntryTime: 200, Pnl: -1.0, ExitReason: domain.ExitReasonStopLoss},
		{TradeID: "t3", StrategyID: "strat-0002", SignalID: "s1", EntryTime: 100, Pnl: 5.0, ExitReason: domain.ExitReasonTakeProfit},
	})

	agg, err := NewAggregator(store).ComputeAggregate(context.Background(), "strat-0001")
	if err != nil {
		t.Fatalf("ComputeAggregate: %v", err)
	}

	if agg.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2 (other strategies must not leak in)", agg.TotalTrades)
	}
	if !agg.ProfitFactorOK || agg.ProfitFactor != 2.0 {
		t.Errorf("ProfitFactor = %f (ok=%v), want 2.0", agg.ProfitFactor, agg.ProfitFactorOK)
	}
}

func TestAggregator_ComputeAggregate_NoTrades(t *testing.T) {
	store := memory.NewTradeResultStore()

	_, err := NewAggregator(store).ComputeAggregate(context.Background(), "strat-9999")
	if !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
}

func TestAggregator_ComputeAll_SortedByStrategyID(t *testing.T) {
	store := memory.NewTradeResultStore()
	seedResults(t, store, []*domain.TradeResult{
		{TradeID: "t1", StrategyID: "strat-0003", SignalID: "s1", EntryTime: 100, Pnl: 1.0},
		{TradeID: "t2", StrategyID: "strat-0001", SignalID: "s1", EntryTime: 100, Pnl: 1.0},
		{TradeID: "t3", StrategyID: "strat-0002", SignalID: "s1", EntryTime: 100, Pnl: -1.0},
	})

	aggs, err := NewAggregator(store).ComputeAll(context.Background())
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}

	if len(aggs) != 3 {
		t.Fatalf("expected 3 aggregates, got %d", len(aggs))
	}
	want := []string{"strat-0001", "strat-0002", "strat-0003"}
	for i, w := range want {
		if aggs[i].StrategyID != w {
			t.Errorf("aggs[%d].StrategyID = %s, want %s", i, aggs[i].StrategyID, w)
		}
	}
}
