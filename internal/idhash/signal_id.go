package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(symbol|close_time)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(symbol string, closeTime int64) string {
	data := fmt.Sprintf("%s|%d", symbol, closeTime)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
