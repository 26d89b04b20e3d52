// Package execution defines the boundary to the order execution collaborator.
// The core emits trade intents for REAL-stage bots and never awaits fill
// confirmation synchronously.
package execution

import (
	"context"
	"log"
	"sync"

	"pump-strategy-lab/internal/domain"
)

// Executor accepts trade intents for placement against real capital.
type Executor interface {
	// Submit hands an intent to the execution layer. Fills are reported
	// back asynchronously and reconciled into trade results upstream.
	Submit(ctx context.Context, intent *domain.TradeIntent) error
}

// LogExecutor logs intents without placing orders. Used when no execution
// collaborator is wired (dry runs, offline pipelines).
type LogExecutor struct{}

// NewLogExecutor creates a log-only executor.
func NewLogExecutor() *LogExecutor {
	return &LogExecutor{}
}

// Submit logs the intent.
func (e *LogExecutor) Submit(_ context.Context, intent *domain.TradeIntent) error {
	log.Printf("[execution] intent bot=%s %s %s size=%.2f", intent.BotID, intent.Direction, intent.Symbol, intent.Size)
	return nil
}

// Compile-time interface check.
var _ Executor = (*LogExecutor)(nil)

// CaptureExecutor records submitted intents for inspection in tests.
type CaptureExecutor struct {
	mu      sync.Mutex
	intents []*domain.TradeIntent
}

// NewCaptureExecutor creates a capturing executor.
func NewCaptureExecutor() *CaptureExecutor {
	return &CaptureExecutor{}
}

// Submit records the intent.
func (e *CaptureExecutor) Submit(_ context.Context, intent *domain.TradeIntent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *intent
	e.intents = append(e.intents, &cp)
	return nil
}

// Intents returns a copy of the captured intents.
func (e *CaptureExecutor) Intents() []*domain.TradeIntent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.TradeIntent, len(e.intents))
	copy(out, e.intents)
	return out
}

// Compile-time interface check.
var _ Executor = (*CaptureExecutor)(nil)
