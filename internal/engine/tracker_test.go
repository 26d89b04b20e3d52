package engine

import (
	"testing"

	"pump-strategy-lab/internal/domain"
)

func trackerSignal(symbol string, detectedAt int64) *domain.PumpSignal {
	return &domain.PumpSignal{
		SignalID:   symbol + "-sig",
		Symbol:     symbol,
		DetectedAt: detectedAt,
		Direction:  domain.DirectionLong,
	}
}

func trackerCandle(symbol string, closeTime int64) *domain.Candle {
	return &domain.Candle{
		Symbol:    symbol,
		Open:      100,
		Close:     100,
		OpenTime:  closeTime - 59999,
		CloseTime: closeTime,
	}
}

func TestTracker_CompletesAtHorizon(t *testing.T) {
	tr := NewTracker(3)
	tr.Track(trackerSignal("BTCUSDT", 59999))

	var ready []Ready
	for i := 1; i <= 3; i++ {
		ready = tr.OnCandle(trackerCandle("BTCUSDT", 59999+int64(i)*60000))
	}

	if len(ready) != 1 {
		t.Fatalf("Expected 1 ready evaluation after 3 candles, got %d", len(ready))
	}
	if len(ready[0].Candles) != 3 {
		t.Errorf("Expected 3 buffered candles, got %d", len(ready[0].Candles))
	}
	if tr.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after completion, want 0", tr.PendingCount())
	}
}

func TestTracker_IgnoresPreSignalAndDuplicateCandles(t *testing.T) {
	tr := NewTracker(2)
	tr.Track(trackerSignal("BTCUSDT", 119999))

	// At/before detection time: ignored.
	if ready := tr.OnCandle(trackerCandle("BTCUSDT", 119999)); len(ready) != 0 {
		t.Error("candle at detection time completed an evaluation")
	}

	tr.OnCandle(trackerCandle("BTCUSDT", 179999))
	// Duplicate of the buffered timestamp: ignored.
	if ready := tr.OnCandle(trackerCandle("BTCUSDT", 179999)); len(ready) != 0 {
		t.Error("duplicate candle completed an evaluation")
	}

	ready := tr.OnCandle(trackerCandle("BTCUSDT", 239999))
	if len(ready) != 1 {
		t.Fatalf("Expected completion after second distinct candle, got %d", len(ready))
	}
}

func TestTracker_SymbolIsolation(t *testing.T) {
	tr := NewTracker(1)
	tr.Track(trackerSignal("BTCUSDT", 59999))

	if ready := tr.OnCandle(trackerCandle("ETHUSDT", 119999)); len(ready) != 0 {
		t.Error("candle for another symbol completed an evaluation")
	}
	if ready := tr.OnCandle(trackerCandle("BTCUSDT", 119999)); len(ready) != 1 {
		t.Error("expected completion for the signal's own symbol")
	}
}

func TestTracker_StopRejectsNewSignals(t *testing.T) {
	tr := NewTracker(1)
	tr.Track(trackerSignal("BTCUSDT", 59999))
	tr.Stop()
	tr.Track(trackerSignal("ETHUSDT", 59999))

	// The admitted signal still completes; the post-stop one was dropped.
	if ready := tr.OnCandle(trackerCandle("BTCUSDT", 119999)); len(ready) != 1 {
		t.Error("admitted evaluation did not complete after Stop")
	}
	if ready := tr.OnCandle(trackerCandle("ETHUSDT", 119999)); len(ready) != 0 {
		t.Error("signal admitted after Stop")
	}
}

func TestTracker_MultipleSignalsSameSymbol(t *testing.T) {
	tr := NewTracker(2)
	tr.Track(trackerSignal("BTCUSDT", 59999))

	tr.OnCandle(trackerCandle("BTCUSDT", 119999))

	second := trackerSignal("BTCUSDT", 119999)
	second.SignalID = "BTCUSDT-sig2"
	tr.Track(second)

	// First signal completes here; second has one candle buffered.
	ready := tr.OnCandle(trackerCandle("BTCUSDT", 179999))
	if len(ready) != 1 || ready[0].Signal.SignalID != "BTCUSDT-sig" {
		t.Fatalf("Expected first signal to complete, got %d ready", len(ready))
	}

	ready = tr.OnCandle(trackerCandle("BTCUSDT", 239999))
	if len(ready) != 1 || ready[0].Signal.SignalID != "BTCUSDT-sig2" {
		t.Fatalf("Expected second signal to complete, got %d ready", len(ready))
	}
}
