// Package engine simulates the strategy population against detected pump
// signals and produces trade results with deterministic fill semantics.
package engine

import (
	"errors"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/idhash"
)

// ErrNoCandles is returned when a signal has no subsequent candles to
// evaluate against. The (signal, strategy) evaluations are skipped and
// recorded as a diagnostic, never propagated to other signals.
var ErrNoCandles = errors.New("no subsequent candles for evaluation")

// ErrNilSignal is returned for a malformed (nil or id-less) signal.
var ErrNilSignal = errors.New("malformed signal")

// Engine evaluates strategies against the price path following a signal.
// Stateless; safe for concurrent use.
type Engine struct{}

// NewEngine creates a backtest engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate simulates every triggered strategy against the candles following
// the signal. candles must be the post-signal path, oldest first; the
// position opens at candles[0].Open.
//
// Strategies whose entry trigger does not fire produce nothing. One
// TradeResult per triggered strategy; trade ids are deterministic per
// (strategy, signal) pair so redelivery cannot double-count downstream.
func (e *Engine) Evaluate(signal *domain.PumpSignal, configs []*domain.StrategyConfig, candles []*domain.Candle) ([]*domain.TradeResult, error) {
	if signal == nil || signal.SignalID == "" {
		return nil, ErrNilSignal
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}

	var results []*domain.TradeResult
	for _, cfg := range configs {
		if !Triggers(cfg, signal) {
			continue
		}
		results = append(results, simulate(cfg, signal, candles))
	}
	return results, nil
}

// Triggers reports whether a strategy's entry filter passes for the signal.
func Triggers(cfg *domain.StrategyConfig, signal *domain.PumpSignal) bool {
	if cfg.Direction != signal.Direction {
		return false
	}
	if signal.Confidence < cfg.MinConfidence {
		return false
	}
	if signal.VolumeMultiplier < cfg.MinVolumeMultiplier {
		return false
	}
	if cfg.RSIMax != nil && signal.RSI > *cfg.RSIMax {
		return false
	}
	if cfg.RSIMin != nil && signal.RSI < *cfg.RSIMin {
		return false
	}
	return true
}

// simulate opens a position at the first candle's open and walks forward,
// closing at whichever of stop-loss, take-profit, or max hold duration
// occurs first. When both TP and SL are crossed within the same candle the
// stop-loss is chosen (conservative fill).
func simulate(cfg *domain.StrategyConfig, signal *domain.PumpSignal, candles []*domain.Candle) *domain.TradeResult {
	entry := candles[0].Open

	var tp, sl float64
	if cfg.Direction == domain.DirectionLong {
		tp = entry * (1 + cfg.TakeProfitPct/100)
		sl = entry * (1 - cfg.StopLossPct/100)
	} else {
		tp = entry * (1 - cfg.TakeProfitPct/100)
		sl = entry * (1 + cfg.StopLossPct/100)
	}

	horizon := len(candles)
	if cfg.MaxHoldCandles > 0 && cfg.MaxHoldCandles < horizon {
		horizon = cfg.MaxHoldCandles
	}

	exitPrice := candles[horizon-1].Close
	exitTime := candles[horizon-1].CloseTime
	exitReason := domain.ExitReasonTimeout
	held := horizon

	for i := 0; i < horizon; i++ {
		c := candles[i]
		var hit bool
		// Stop-loss checked first: SL takes precedence inside one candle.
		if cfg.Direction == domain.DirectionLong {
			switch {
			case c.Low <= sl:
				exitPrice, exitReason, hit = sl, domain.ExitReasonStopLoss, true
			case c.High >= tp:
				exitPrice, exitReason, hit = tp, domain.ExitReasonTakeProfit, true
			}
		} else {
			switch {
			case c.High >= sl:
				exitPrice, exitReason, hit = sl, domain.ExitReasonStopLoss, true
			case c.Low <= tp:
				exitPrice, exitReason, hit = tp, domain.ExitReasonTakeProfit, true
			}
		}
		if hit {
			exitTime = c.CloseTime
			held = i + 1
			break
		}
	}

	pnlPct := (exitPrice - entry) / entry * 100
	if cfg.Direction == domain.DirectionShort {
		pnlPct = -pnlPct
	}
	pnl := pnlPct / 100 * cfg.PositionSizeQuote

	return &domain.TradeResult{
		TradeID:      idhash.ComputeTradeID(cfg.StrategyID, signal.SignalID),
		StrategyID:   cfg.StrategyID,
		SignalID:     signal.SignalID,
		Symbol:       signal.Symbol,
		Direction:    cfg.Direction,
		EntryTime:    candles[0].OpenTime,
		EntryPrice:   entry,
		ExitTime:     exitTime,
		ExitPrice:    exitPrice,
		ExitReason:   exitReason,
		PositionSize: cfg.PositionSizeQuote,
		Pnl:          pnl,
		PnlPct:       pnlPct,
		HoldCandles:  held,
	}
}
