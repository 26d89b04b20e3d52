package ingestion

import (
	"errors"
	"sort"

	"pump-strategy-lab/internal/domain"
)

// ErrInvalidOrdering is returned when candles are not properly ordered.
var ErrInvalidOrdering = errors.New("candles are not in chronological order")

// OrderingGuard enforces per-symbol chronological order on a candle stream.
// A candle strictly older than the newest close_time seen for its symbol is
// stale and must be discarded. A candle with an equal close_time passes:
// downstream treats it as a correction and replaces the earlier one.
type OrderingGuard struct {
	latest map[string]int64 // symbol -> newest close_time admitted
}

// NewOrderingGuard creates an empty guard.
func NewOrderingGuard() *OrderingGuard {
	return &OrderingGuard{latest: make(map[string]int64)}
}

// Admit reports whether the candle is in order for its symbol and records
// its close_time when it is.
func (g *OrderingGuard) Admit(c *domain.Candle) bool {
	last, ok := g.latest[c.Symbol]
	if ok && c.CloseTime < last {
		return false
	}
	g.latest[c.Symbol] = c.CloseTime
	return true
}

// SortCandles orders candles by (symbol ASC, close_time ASC).
func SortCandles(candles []*domain.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return compareCandles(candles[i], candles[j]) < 0
	})
}

// ValidateCandleOrdering checks that candles of one symbol are strictly
// ordered by close_time. Returns ErrInvalidOrdering if not.
func ValidateCandleOrdering(candles []*domain.Candle) error {
	for i := 1; i < len(candles); i++ {
		if compareCandles(candles[i-1], candles[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareCandles returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (symbol ASC, close_time ASC)
func compareCandles(a, b *domain.Candle) int {
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	if a.CloseTime != b.CloseTime {
		if a.CloseTime < b.CloseTime {
			return -1
		}
		return 1
	}
	return 0
}
