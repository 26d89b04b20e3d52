package ingestion

import (
	"errors"
	"testing"

	"pump-strategy-lab/internal/domain"
)

func TestOrderingGuard_AdmitInOrder(t *testing.T) {
	g := NewOrderingGuard()

	if !g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 100}) {
		t.Error("first candle must be admitted")
	}
	if !g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 200}) {
		t.Error("newer candle must be admitted")
	}
}

func TestOrderingGuard_DropsStale(t *testing.T) {
	g := NewOrderingGuard()

	g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 200})
	if g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 100}) {
		t.Error("older candle must be dropped")
	}
	// The stale candle must not regress the high-water mark.
	if g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 150}) {
		t.Error("candle older than high-water mark must be dropped")
	}
}

func TestOrderingGuard_EqualCloseTimePasses(t *testing.T) {
	g := NewOrderingGuard()

	g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 100})
	// A correction for the same candle passes through.
	if !g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 100}) {
		t.Error("equal close_time must be admitted for last-write-wins handling")
	}
}

func TestOrderingGuard_SymbolsIndependent(t *testing.T) {
	g := NewOrderingGuard()

	g.Admit(&domain.Candle{Symbol: "ABCUSDT", CloseTime: 500})
	if !g.Admit(&domain.Candle{Symbol: "XYZUSDT", CloseTime: 100}) {
		t.Error("another symbol's clock must not affect admission")
	}
}

func TestSortCandles(t *testing.T) {
	candles := []*domain.Candle{
		{Symbol: "XYZUSDT", CloseTime: 100},
		{Symbol: "ABCUSDT", CloseTime: 200},
		{Symbol: "ABCUSDT", CloseTime: 100},
	}

	SortCandles(candles)

	want := []struct {
		symbol string
		ct     int64
	}{
		{"ABCUSDT", 100},
		{"ABCUSDT", 200},
		{"XYZUSDT", 100},
	}
	for i, w := range want {
		if candles[i].Symbol != w.symbol || candles[i].CloseTime != w.ct {
			t.Errorf("candles[%d] = %s@%d, want %s@%d",
				i, candles[i].Symbol, candles[i].CloseTime, w.symbol, w.ct)
		}
	}
}

func TestValidateCandleOrdering(t *testing.T) {
	ordered := []*domain.Candle{
		{Symbol: "ABCUSDT", CloseTime: 100},
		{Symbol: "ABCUSDT", CloseTime: 200},
	}
	if err := ValidateCandleOrdering(ordered); err != nil {
		t.Errorf("ordered candles rejected: %v", err)
	}

	duplicate := []*domain.Candle{
		{Symbol: "ABCUSDT", CloseTime: 100},
		{Symbol: "ABCUSDT", CloseTime: 100},
	}
	if err := ValidateCandleOrdering(duplicate); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering for duplicate close_time, got %v", err)
	}
}
