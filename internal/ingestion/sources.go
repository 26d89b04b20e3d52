// Package ingestion feeds closed candles from an exchange stream into the
// pipeline, enforcing per-symbol chronological order along the way.
package ingestion

import (
	"context"

	"pump-strategy-lab/internal/domain"
)

// CandleSource provides closed candles from an external feed.
type CandleSource interface {
	// Subscribe returns a channel of closed candles. The channel is closed
	// when the source shuts down. Candles may arrive out of order across
	// symbols; Runner enforces per-symbol ordering.
	Subscribe(ctx context.Context) (<-chan *domain.Candle, error)

	// Close shuts the source down and closes the subscription channel.
	Close() error
}
