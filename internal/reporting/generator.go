// Package reporting builds the strategy rankings report from stored data
// and renders it as Markdown or CSV.
package reporting

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/metrics"
	"pump-strategy-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	aggregator      *metrics.Aggregator
	signalStore     storage.SignalStore
	botStore        storage.BotStore
	transitionStore storage.TransitionStore
	now             func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	aggregator *metrics.Aggregator,
	signalStore storage.SignalStore,
	botStore storage.BotStore,
	transitionStore storage.TransitionStore,
) *Generator {
	return &Generator{
		aggregator:      aggregator,
		signalStore:     signalStore,
		botStore:        botStore,
		transitionStore: transitionStore,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete rankings report. A data set with no trades
// yields an empty rankings table, not an error.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	aggs, err := g.aggregator.ComputeAll(ctx)
	if err != nil && !errors.Is(err, metrics.ErrNoTrades) {
		return nil, err
	}

	bots, err := g.botStore.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := g.generateDataSummary(ctx, aggs)
	if err != nil {
		return nil, err
	}

	transitions, err := g.generateTransitions(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:   g.now(),
		StrategyCount: len(aggs),
		DataSummary:   *summary,
		Rankings:      g.generateRankings(aggs, bots),
		Bots:          g.generateBotRoster(bots),
		Transitions:   transitions,
	}, nil
}

// generateDataSummary computes the data summary from signals and aggregates.
func (g *Generator) generateDataSummary(ctx context.Context, aggs []*domain.StrategyAggregate) (*DataSummary, error) {
	signals, err := g.signalStore.GetByTimeRange(ctx, 0, math.MaxInt64)
	if err != nil {
		return nil, err
	}

	totalTrades := 0
	for _, agg := range aggs {
		totalTrades += agg.TotalTrades
	}

	symbols := make(map[string]struct{})
	var start, end int64
	for i, s := range signals {
		symbols[s.Symbol] = struct{}{}
		if i == 0 || s.DetectedAt < start {
			start = s.DetectedAt
		}
		if s.DetectedAt > end {
			end = s.DetectedAt
		}
	}

	return &DataSummary{
		TotalSignals:   len(signals),
		TotalTrades:    totalTrades,
		Symbols:        len(symbols),
		DateRangeStart: start,
		DateRangeEnd:   end,
	}, nil
}

// generateRankings builds ranking rows ordered best first.
func (g *Generator) generateRankings(aggs []*domain.StrategyAggregate, bots []*domain.BotInstance) []RankingRow {
	stageByStrategy := make(map[string]string, len(bots))
	for _, b := range bots {
		stageByStrategy[b.StrategyID] = string(b.Stage)
	}

	rows := make([]RankingRow, len(aggs))
	for i, agg := range aggs {
		stage := stageByStrategy[agg.StrategyID]
		if stage == "" {
			stage = string(domain.StageBacktest)
		}
		rows[i] = RankingRow{
			StrategyID:           agg.StrategyID,
			Stage:                stage,
			TotalTrades:          agg.TotalTrades,
			WinRate:              agg.WinRate,
			ProfitFactor:         agg.ProfitFactor,
			ProfitFactorOK:       agg.ProfitFactorOK,
			TotalPnl:             agg.TotalPnl,
			Expectancy:           agg.PnlMean,
			SharpeLike:           agg.SharpeLike,
			MaxDrawdown:          agg.MaxDrawdown,
			MaxConsecutiveLosses: agg.MaxConsecutiveLosses,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ProfitFactorOK != b.ProfitFactorOK {
			return a.ProfitFactorOK
		}
		if a.ProfitFactor != b.ProfitFactor {
			return a.ProfitFactor > b.ProfitFactor
		}
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		return a.StrategyID < b.StrategyID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// generateBotRoster builds the active bot table, bot_id ASC.
func (g *Generator) generateBotRoster(bots []*domain.BotInstance) []BotRow {
	rows := make([]BotRow, len(bots))
	for i, b := range bots {
		rows[i] = BotRow{
			BotID:      b.BotID,
			StrategyID: b.StrategyID,
			Stage:      string(b.Stage),
			PromotedAt: b.PromotedAt,
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].BotID < rows[j].BotID })
	return rows
}

// generateTransitions loads the full transition log, timestamp ASC.
func (g *Generator) generateTransitions(ctx context.Context) ([]TransitionRow, error) {
	transitions, err := g.transitionStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]TransitionRow, len(transitions))
	for i, t := range transitions {
		rows[i] = TransitionRow{
			Timestamp:      t.Timestamp,
			StrategyID:     t.StrategyID,
			From:           string(t.From),
			To:             string(t.To),
			Reason:         t.Reason,
			WindowTrades:   t.WindowTrades,
			WindowWinRate:  t.WindowWinRate,
			WindowProfitPF: t.WindowProfitPF,
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}
