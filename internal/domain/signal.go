package domain

// Direction represents the trade bias of a signal or strategy.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// PumpSignal represents a detected short-term price/volume spike on a symbol.
// Created by the pump detector; read-only downstream.
type PumpSignal struct {
	SignalID   string    // deterministic hash (symbol | close_time)
	Symbol     string
	DetectedAt int64     // close_time of the triggering candle (ms)
	Direction  Direction // bias from the sign of the price change

	// Magnitude metrics
	PriceChangePct   float64 // signed 1-period change of the triggering candle
	VolumeMultiplier float64 // candle volume relative to rolling average
	QuoteVolume      float64 // quote-currency notional of the triggering candle
	RSI              float64 // RSI over the detector window at detection time
	Confidence       float64 // 0-100 score

	// Window holds the reference candles that produced the signal,
	// oldest first, triggering candle last. Not persisted.
	Window []*Candle
}
