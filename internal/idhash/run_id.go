package idhash

import (
	"fmt"

	"github.com/google/uuid"
)

// namespace scopes every name-based UUID generated by this module.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("execution-lab"))

// ComputeRunID returns a name-based (v5) UUID for a backtest run.
// The same strategy, symbol, range and seed always yield the same run id.
func ComputeRunID(strategyID, symbol string, from, to int64, seed uint64) string {
	return ComputeStageRunID(strategyID, symbol, "", from, to, seed)
}

// ComputeStageRunID is ComputeRunID for one stage of a multi-run campaign,
// such as a walk-forward window's train run. Runs over the same range in
// different stages get different ids. An empty stage equals ComputeRunID.
func ComputeStageRunID(strategyID, symbol, stage string, from, to int64, seed uint64) string {
	name := fmt.Sprintf("run|%s|%s|%d|%d|%d", strategyID, symbol, from, to, seed)
	if stage != "" {
		name += "|" + stage
	}
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// ComputeOrderID returns a name-based UUID for the seq-th order of a run.
func ComputeOrderID(runID string, seq int) string {
	name := fmt.Sprintf("order|%s|%d", runID, seq)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
