package domain

// BotInstance binds a promoted strategy to a pipeline stage. Created only at
// promotion; its stats window starts fresh so live performance is judged on
// its own merits, not backtest history.
type BotInstance struct {
	BotID      string
	StrategyID string
	Stage      Stage
	CreatedAt  int64 // ms
	PromotedAt int64 // ms of the last stage change
}

// StageTransition is an append-only record of a strategy/bot stage change.
type StageTransition struct {
	StrategyID string
	BotID      string // empty for the initial BACKTEST->SIMULATED promotion source side
	From       Stage
	To         Stage
	Reason     string
	Timestamp  int64 // ms

	// Frozen statistics of the window that justified the transition.
	WindowTrades   int
	WindowWinRate  float64
	WindowProfitPF float64 // profit factor at transition time (0 if undefined)
}
