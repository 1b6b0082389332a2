package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|symbol|entry_time|exit_time|seq)
// seq disambiguates several partial closes of the same position.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	symbol string,
	entryTime int64,
	exitTime int64,
	seq int,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d",
		runID,
		symbol,
		entryTime,
		exitTime,
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
