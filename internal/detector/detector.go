// Package detector implements pump detection over per-symbol candle streams.
// State is partitioned by symbol; no persistence, windows rebuild from the
// live stream after restart.
package detector

import (
	"fmt"
	"math"

	"pump-strategy-lab/internal/domain"
	"pump-strategy-lab/internal/idhash"
)

const (
	volumeAvgCandles = 20 // rolling volume average horizon (current candle excluded)
	rsiPeriod        = 14
	pressureCandles  = 10 // buy/sell pressure horizon
)

// Config holds pump detection thresholds.
type Config struct {
	WindowSize            int     // candles kept per symbol; no signal before full
	PriceIncrease1m       float64 // minimum 1-period change magnitude, percent
	PriceIncrease5m       float64 // short-window change bonus threshold, percent
	VolumeSpikeMultiplier float64 // minimum volume vs rolling average
	MinVolumeUSDT         float64 // minimum quote notional of the triggering candle
	MinConfidence         float64 // 0-100 emission threshold
	CooldownMs            int64   // per-symbol quiet period after an emitted signal

	// Recent-pump lookback: skip symbols that already spiked within the
	// last LookbackCandles (the first pump candle is the tradable one).
	LookbackCandles   int
	LookbackPricePct  float64
	LookbackVolumeMul float64
}

// DefaultConfig returns detection defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:            30,
		PriceIncrease1m:       3.0,
		PriceIncrease5m:       8.0,
		VolumeSpikeMultiplier: 3.0,
		MinVolumeUSDT:         50000,
		MinConfidence:         70,
		CooldownMs:            600000, // 10 minutes
		LookbackCandles:       20,
		LookbackPricePct:      5.0,
		LookbackVolumeMul:     3.0,
	}
}

// Validate fails fast on invalid thresholds. Never silently clamps.
func (c Config) Validate() error {
	if c.WindowSize < volumeAvgCandles+1 {
		return fmt.Errorf("window size %d below minimum %d", c.WindowSize, volumeAvgCandles+1)
	}
	if c.PriceIncrease1m <= 0 {
		return fmt.Errorf("price_increase_1m must be positive, got %v", c.PriceIncrease1m)
	}
	if c.VolumeSpikeMultiplier <= 0 {
		return fmt.Errorf("volume_spike_multiplier must be positive, got %v", c.VolumeSpikeMultiplier)
	}
	if c.MinVolumeUSDT < 0 {
		return fmt.Errorf("min_volume_usdt must be non-negative, got %v", c.MinVolumeUSDT)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be in [0,100], got %v", c.MinConfidence)
	}
	if c.CooldownMs < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %d", c.CooldownMs)
	}
	return nil
}

// symbolState holds the rolling window for one symbol. Owned by a single
// ingestion worker; no locking needed across symbols.
type symbolState struct {
	window       []*domain.Candle // oldest first, at most WindowSize entries
	lastSignalAt int64            // close_time of the last emitted signal
}

// PumpDetector consumes closed candles and emits pump signals.
type PumpDetector struct {
	config Config
	states map[string]*symbolState
}

// New creates a pump detector, rejecting invalid thresholds.
func New(config Config) (*PumpDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &PumpDetector{
		config: config,
		states: make(map[string]*symbolState),
	}, nil
}

// OnCandle ingests one closed candle and returns a signal, or nil.
// No signal is the default: insufficient history, cooldown, a recent pump,
// and sub-threshold moves all return nil.
//
// Duplicate close_time is last-write-wins on the window entry and never
// re-emits. Older close_time than the window head entry is discarded.
func (d *PumpDetector) OnCandle(c *domain.Candle) *domain.PumpSignal {
	if c == nil || c.Symbol == "" {
		return nil
	}

	st, ok := d.states[c.Symbol]
	if !ok {
		st = &symbolState{}
		d.states[c.Symbol] = st
	}

	if n := len(st.window); n > 0 {
		last := st.window[n-1]
		switch {
		case c.CloseTime == last.CloseTime:
			// Last-write-wins, no double signal for the same timestamp.
			st.window[n-1] = c
			return nil
		case c.CloseTime < last.CloseTime:
			// Out-of-order; the ordering guard upstream logs these.
			return nil
		}
	}

	st.window = append(st.window, c)
	if len(st.window) > d.config.WindowSize {
		st.window = st.window[1:]
	}

	if len(st.window) < d.config.WindowSize {
		return nil // window not yet full
	}

	if d.config.CooldownMs > 0 && st.lastSignalAt > 0 &&
		c.CloseTime-st.lastSignalAt < d.config.CooldownMs {
		return nil
	}

	if d.hasRecentPump(st.window) {
		return nil
	}

	change1m := priceChange(st.window, 1)
	magnitude := math.Abs(change1m)
	volumeRatio := volumeSpike(st.window)
	quoteVolume := c.QuoteVolume

	if magnitude < d.config.PriceIncrease1m ||
		volumeRatio < d.config.VolumeSpikeMultiplier ||
		quoteVolume < d.config.MinVolumeUSDT {
		return nil
	}

	direction := domain.DirectionLong
	if change1m < 0 {
		direction = domain.DirectionShort
	}

	rsi := computeRSI(st.window)
	confidence := d.confidence(change1m, priceChange(st.window, 5), volumeRatio, rsi, momentum(st.window), pressure(st.window, direction))
	if confidence < d.config.MinConfidence {
		return nil
	}

	st.lastSignalAt = c.CloseTime

	window := make([]*domain.Candle, len(st.window))
	copy(window, st.window)

	return &domain.PumpSignal{
		SignalID:         idhash.ComputeSignalID(c.Symbol, c.CloseTime),
		Symbol:           c.Symbol,
		DetectedAt:       c.CloseTime,
		Direction:        direction,
		PriceChangePct:   change1m,
		VolumeMultiplier: volumeRatio,
		QuoteVolume:      quoteVolume,
		RSI:              rsi,
		Confidence:       confidence,
		Window:           window,
	}
}

// confidence computes the 0-100 score as a monotonic function of the
// magnitude metrics, calibrated against the configured thresholds.
// Bands: price 0-30, volume 0-25, RSI 0-15, momentum 0-15, pressure 0-15.
func (d *PumpDetector) confidence(change1m, change5m, volumeRatio, rsi, mom, press float64) float64 {
	var confidence float64

	priceScore := math.Min(30, math.Abs(change1m)/d.config.PriceIncrease1m*15)
	if d.config.PriceIncrease5m > 0 && math.Abs(change5m) >= d.config.PriceIncrease5m {
		priceScore = math.Min(30, priceScore+15)
	}
	confidence += priceScore

	confidence += math.Min(25, volumeRatio/d.config.VolumeSpikeMultiplier*25)

	// RSI extremes confirm the move for either direction.
	switch {
	case rsi >= 70 || rsi <= 30:
		confidence += 15
	case rsi >= 60 || rsi <= 40:
		confidence += 10
	}

	absMom := math.Abs(mom)
	switch {
	case absMom >= 2.0:
		confidence += 15
	case absMom >= 1.0:
		confidence += 10
	}

	switch {
	case press >= 80:
		confidence += 15
	case press >= 60:
		confidence += 10
	}

	return math.Min(100, math.Round(confidence))
}

// hasRecentPump reports whether any candle before the current one already
// spiked within the lookback horizon.
func (d *PumpDetector) hasRecentPump(window []*domain.Candle) bool {
	if d.config.LookbackCandles <= 0 {
		return false
	}

	n := len(window) - 1 // exclude the current candle
	start := n - d.config.LookbackCandles
	if start < 1 {
		start = 1
	}

	for i := start; i < n; i++ {
		prev := window[i-1]
		if prev.Close == 0 {
			continue
		}
		change := math.Abs((window[i].Close - prev.Close) / prev.Close * 100)
		if change < d.config.LookbackPricePct {
			continue
		}
		if avg := meanVolumeBefore(window, i); avg > 0 && window[i].Volume/avg >= d.config.LookbackVolumeMul {
			return true
		}
	}
	return false
}

// priceChange returns the percent close-to-close change over N periods.
func priceChange(window []*domain.Candle, periods int) float64 {
	if len(window) < periods+1 {
		return 0
	}
	old := window[len(window)-periods-1].Close
	if old == 0 {
		return 0
	}
	return (window[len(window)-1].Close - old) / old * 100
}

// volumeSpike returns the current candle volume relative to the rolling
// average of the preceding candles.
func volumeSpike(window []*domain.Candle) float64 {
	n := len(window)
	if n < volumeAvgCandles+1 {
		return 1.0
	}

	avg := meanVolumeBefore(window, n-1)
	if avg == 0 {
		return 1.0
	}
	return window[n-1].Volume / avg
}

// meanVolumeBefore averages volume over up to volumeAvgCandles-1 candles
// strictly before index i.
func meanVolumeBefore(window []*domain.Candle, i int) float64 {
	start := i - (volumeAvgCandles - 1)
	if start < 0 {
		start = 0
	}
	if start >= i {
		return 0
	}

	var sum float64
	for j := start; j < i; j++ {
		sum += window[j].Volume
	}
	return sum / float64(i-start)
}

// computeRSI returns the RSI over the window tail. A window with no losses
// yields 100, no gains yields 0.
func computeRSI(window []*domain.Candle) float64 {
	if len(window) < rsiPeriod+1 {
		return 50
	}

	tail := window[len(window)-rsiPeriod-1:]
	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		delta := tail[i].Close - tail[i-1].Close
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}

	rs := (gains / rsiPeriod) / (losses / rsiPeriod)
	return 100 - 100/(1+rs)
}

// momentum compares the latest 2-candle move against the preceding one.
func momentum(window []*domain.Candle) float64 {
	n := len(window)
	if n < 5 {
		return 0
	}

	recent := window[n-1].Close - window[n-3].Close
	previous := window[n-3].Close - window[n-5].Close
	if previous == 0 {
		return 0
	}
	return recent / math.Abs(previous)
}

// pressure returns the percentage of candles over the pressure horizon that
// agree with the direction: green share for LONG, red share for SHORT.
func pressure(window []*domain.Candle, direction domain.Direction) float64 {
	n := len(window)
	if n < pressureCandles {
		return 0
	}

	agree := 0
	for _, c := range window[n-pressureCandles:] {
		if direction == domain.DirectionLong && c.Close > c.Open {
			agree++
		}
		if direction == domain.DirectionShort && c.Close < c.Open {
			agree++
		}
	}
	return float64(agree) / pressureCandles * 100
}
