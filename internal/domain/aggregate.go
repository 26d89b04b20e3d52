package domain

// StrategyAggregate is the full performance summary for one strategy,
// computed over its recorded trade results in chronological order.
type StrategyAggregate struct {
	StrategyID string

	// Counts
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // 0..1

	// Pnl distribution (quote currency)
	TotalPnl  float64
	PnlMean   float64 // expectancy per trade
	PnlMedian float64
	PnlP10    float64
	PnlP90    float64
	PnlMin    float64
	PnlMax    float64
	PnlStddev float64

	// Profit factor. Undefined (ProfitFactorOK=false) when gross loss is zero.
	GrossProfit    float64
	GrossLoss      float64
	ProfitFactor   float64
	ProfitFactorOK bool

	// SharpeLike is mean/stddev of per-trade pnl, not annualized.
	SharpeLike float64

	// Order-dependent metrics over cumulative pnl.
	MaxDrawdown          float64
	MaxConsecutiveLosses int

	// Exit reason breakdown
	TakeProfitExits int
	StopLossExits   int
	TimeoutExits    int
}
