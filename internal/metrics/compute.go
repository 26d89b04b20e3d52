package metrics

import (
	"math"
	"sort"

	"pump-strategy-lab/internal/domain"
)

// computeFromResults calculates all metrics from a slice of trade results.
// Results are sorted by EntryTime ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func computeFromResults(strategyID string, results []*domain.TradeResult) *domain.StrategyAggregate {
	n := len(results)
	if n == 0 {
		return &domain.StrategyAggregate{StrategyID: strategyID}
	}

	sorted := make([]*domain.TradeResult, n)
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTime != sorted[j].EntryTime {
			return sorted[i].EntryTime < sorted[j].EntryTime
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	agg := &domain.StrategyAggregate{
		StrategyID:  strategyID,
		TotalTrades: n,
	}

	pnls := make([]float64, n)
	for i, r := range sorted {
		pnls[i] = r.Pnl
		if r.Pnl > 0 {
			agg.Wins++
			agg.GrossProfit += r.Pnl
		} else {
			agg.Losses++
			agg.GrossLoss += -r.Pnl
		}
		agg.TotalPnl += r.Pnl

		switch r.ExitReason {
		case domain.ExitReasonTakeProfit:
			agg.TakeProfitExits++
		case domain.ExitReasonStopLoss:
			agg.StopLossExits++
		case domain.ExitReasonTimeout:
			agg.TimeoutExits++
		}
	}
	agg.WinRate = float64(agg.Wins) / float64(n)

	if agg.GrossLoss > 0 {
		agg.ProfitFactor = agg.GrossProfit / agg.GrossLoss
		agg.ProfitFactorOK = true
	}

	sortedPnls := make([]float64, n)
	copy(sortedPnls, pnls)
	sort.Float64s(sortedPnls)

	agg.PnlMean = computeMean(pnls)
	agg.PnlStddev = computeStddev(pnls, agg.PnlMean)
	agg.PnlMedian = computePercentile(sortedPnls, 0.50)
	agg.PnlP10 = computePercentile(sortedPnls, 0.10)
	agg.PnlP90 = computePercentile(sortedPnls, 0.90)
	agg.PnlMin = sortedPnls[0]
	agg.PnlMax = sortedPnls[n-1]

	if agg.PnlStddev > 0 {
		agg.SharpeLike = agg.PnlMean / agg.PnlStddev
	}

	agg.MaxDrawdown = computeMaxDrawdown(pnls)
	agg.MaxConsecutiveLosses = computeMaxConsecutiveLosses(pnls)

	return agg
}

// computeMean calculates arithmetic mean of pnls.
func computeMean(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pnls {
		sum += p
	}
	return sum / float64(len(pnls))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(pnls []float64, mean float64) float64 {
	n := len(pnls)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, p := range pnls {
		diff := p - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC. p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative pnl.
// Pnls must be in chronological order.
func computeMaxDrawdown(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of pnl <= 0.
// Pnls must be in chronological order.
func computeMaxConsecutiveLosses(pnls []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, p := range pnls {
		if p <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
