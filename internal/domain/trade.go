package domain

// TradeResult represents one simulated trade outcome for a
// (strategy, signal) pair. Append-only fact; never mutated after creation.
type TradeResult struct {
	TradeID    string // deterministic hash (strategy_id | signal_id)
	StrategyID string
	SignalID   string
	Symbol     string
	Direction  Direction

	EntryTime  int64   // ms
	EntryPrice float64 // open of the first candle after the signal
	ExitTime   int64   // ms
	ExitPrice  float64
	ExitReason string // TAKE_PROFIT | STOP_LOSS | TIMEOUT

	PositionSize float64 // quote currency
	Pnl          float64 // quote currency, after direction applied
	PnlPct       float64 // signed return on entry price
	HoldCandles  int     // candles between entry and exit inclusive
}

// Exit reason codes.
const (
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonTimeout    = "TIMEOUT"
)

// TradeIntent is the order request emitted to the execution collaborator
// for REAL-stage bots. The core never awaits fill confirmation.
type TradeIntent struct {
	BotID     string
	Symbol    string
	Direction Direction
	Size      float64 // quote currency
	Timestamp int64   // ms
}
