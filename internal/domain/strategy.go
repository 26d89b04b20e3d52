package domain

// Stage represents a strategy's position in the evaluation pipeline.
type Stage string

// Stage constants. Transitions are validated by the promotion package.
const (
	StageBacktest  Stage = "BACKTEST"
	StageSimulated Stage = "SIMULATED"
	StageReal      Stage = "REAL"
	StageRetired   Stage = "RETIRED"
)

// StrategyConfig represents one parametrized trading rule.
// Immutable after generation: statistics reference it by StrategyID and
// adaptation happens by generating a new config, never by editing one.
type StrategyConfig struct {
	StrategyID string
	Direction  Direction

	// Entry trigger
	MinConfidence       float64  // minimum signal confidence 0-100
	MinVolumeMultiplier float64  // minimum signal volume spike
	RSIMax              *float64 // LONG filter: skip overbought signals (nil = no filter)
	RSIMin              *float64 // SHORT filter: skip oversold signals (nil = no filter)

	// Exit rule
	TakeProfitPct  float64 // e.g. 2.0 means +2% from entry
	StopLossPct    float64 // e.g. 1.0 means -1% from entry
	MaxHoldCandles int     // timeout horizon in candles

	// Sizing
	PositionSizeQuote float64 // fixed position size in quote currency (USDT)
}

// StrategyStats holds the mutable rolling performance aggregate for one
// strategy (or one promoted bot's stage window). Exactly one writer at a time;
// read via snapshots.
type StrategyStats struct {
	StrategyID string

	TotalTrades int
	Wins        int
	Losses      int

	TotalPnl    float64 // sum of per-trade pnl in quote currency
	SumPnlSq    float64 // sum of squared pnl, for variance-style reporting
	GrossProfit float64 // sum of positive pnl
	GrossLoss   float64 // absolute sum of negative pnl

	MaxDrawdown float64 // worst peak-to-trough of the cumulative pnl curve
	Peak        float64 // running peak of the cumulative pnl curve
	Equity      float64 // running cumulative pnl

	LastUpdated int64 // ms timestamp of the last applied result
}

// WinRate returns the win percentage (0-100). Zero trades yields 0.
func (s *StrategyStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades) * 100
}

// ProfitFactor returns gross_profit / gross_loss. The second return is false
// when gross loss is zero: insufficient data, never a promotion basis.
func (s *StrategyStats) ProfitFactor() (float64, bool) {
	if s.GrossLoss == 0 {
		return 0, false
	}
	return s.GrossProfit / s.GrossLoss, true
}
