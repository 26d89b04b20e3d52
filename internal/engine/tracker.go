package engine

import (
	"sync"

	"pump-strategy-lab/internal/domain"
)

// Ready is a signal whose post-signal candle path is complete and can be
// handed to the engine.
type Ready struct {
	Signal  *domain.PumpSignal
	Candles []*domain.Candle
}

// Tracker buffers post-signal candles per symbol until the evaluation
// horizon is reached. Signals are admitted with Track and drained through
// OnCandle; after Stop no new signals are admitted.
type Tracker struct {
	horizon int

	mu      sync.Mutex
	pending map[string][]*pendingEval
	stopped bool
}

type pendingEval struct {
	signal  *domain.PumpSignal
	candles []*domain.Candle
}

// NewTracker creates a tracker collecting `horizon` candles per signal.
// The horizon should cover the population's largest MaxHoldCandles.
func NewTracker(horizon int) *Tracker {
	return &Tracker{
		horizon: horizon,
		pending: make(map[string][]*pendingEval),
	}
}

// Track admits a signal for candle collection. Signals arriving after Stop
// are ignored.
func (t *Tracker) Track(signal *domain.PumpSignal) {
	if signal == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.pending[signal.Symbol] = append(t.pending[signal.Symbol], &pendingEval{signal: signal})
}

// OnCandle appends the candle to every pending evaluation on its symbol and
// returns the evaluations whose horizon is now complete. Candles at or
// before the signal's detection time are ignored, as are duplicates of the
// last buffered timestamp.
func (t *Tracker) OnCandle(c *domain.Candle) []Ready {
	if c == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pend := t.pending[c.Symbol]
	if len(pend) == 0 {
		return nil
	}

	var ready []Ready
	remaining := pend[:0]
	for _, p := range pend {
		if c.CloseTime <= p.signal.DetectedAt {
			remaining = append(remaining, p)
			continue
		}
		if n := len(p.candles); n > 0 && c.CloseTime <= p.candles[n-1].CloseTime {
			remaining = append(remaining, p)
			continue
		}

		p.candles = append(p.candles, c)
		if len(p.candles) >= t.horizon {
			ready = append(ready, Ready{Signal: p.signal, Candles: p.candles})
			continue
		}
		remaining = append(remaining, p)
	}

	if len(remaining) == 0 {
		delete(t.pending, c.Symbol)
	} else {
		t.pending[c.Symbol] = remaining
	}
	return ready
}

// Stop rejects new signals. Already-admitted evaluations keep collecting
// candles so bounded in-flight work can complete.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// PendingCount returns the number of signals still collecting candles.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, pend := range t.pending {
		n += len(pend)
	}
	return n
}
