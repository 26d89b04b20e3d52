package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(strategy_id|signal_id)
// The pair is the idempotence key: replaying a signal against the same
// strategy yields the same trade_id.
func ComputeTradeID(strategyID, signalID string) string {
	data := fmt.Sprintf("%s|%s", strategyID, signalID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeBotID computes a deterministic bot_id using SHA256.
// Formula: SHA256(strategy_id|stage|promoted_at)
// Returns the first 16 hex characters, enough to be unique per promotion.
func ComputeBotID(strategyID, stage string, promotedAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", strategyID, stage, promotedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
