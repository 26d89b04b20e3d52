package domain

// Candle represents a closed OHLCV bar for a single symbol.
// Immutable once emitted by the aggregation boundary.
type Candle struct {
	Symbol      string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64 // base-asset volume
	QuoteVolume float64 // quote-asset (USDT) volume
	OpenTime    int64   // Unix timestamp in milliseconds
	CloseTime   int64   // Unix timestamp in milliseconds
}

// ChangePct returns the open-to-close price change as a percentage.
// Returns 0 for a zero open price (malformed candle).
func (c *Candle) ChangePct() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// IsGreen reports whether the candle closed above its open.
func (c *Candle) IsGreen() bool {
	return c.Close > c.Open
}
