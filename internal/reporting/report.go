package reporting

import "time"

// Report is the strategy rankings report built from stored signals, trade
// results, bots and stage transitions.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	StrategyCount int

	// Data Summary
	DataSummary DataSummary

	// Rankings (best first: profit factor DESC, win rate DESC, strategy_id ASC;
	// strategies with an undefined profit factor rank below all defined ones)
	Rankings []RankingRow

	// Bot roster (active bots, bot_id ASC)
	Bots []BotRow

	// Stage transition log (timestamp ASC)
	Transitions []TransitionRow
}

// DataSummary describes the underlying data set.
type DataSummary struct {
	TotalSignals   int
	TotalTrades    int
	Symbols        int
	DateRangeStart int64 // Unix ms, from signals
	DateRangeEnd   int64 // Unix ms
}

// RankingRow is one strategy in the rankings table.
type RankingRow struct {
	Rank       int
	StrategyID string
	Stage      string // stage of the strategy's bot, or BACKTEST when never promoted

	TotalTrades          int
	WinRate              float64 // 0..1
	ProfitFactor         float64
	ProfitFactorOK       bool
	TotalPnl             float64
	Expectancy           float64 // mean pnl per trade
	SharpeLike           float64
	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// BotRow is one active bot in the roster table.
type BotRow struct {
	BotID      string
	StrategyID string
	Stage      string
	PromotedAt int64 // Unix ms
}

// TransitionRow is one stage transition record.
type TransitionRow struct {
	Timestamp  int64 // Unix ms
	StrategyID string
	From       string
	To         string
	Reason     string

	WindowTrades   int
	WindowWinRate  float64
	WindowProfitPF float64
}
