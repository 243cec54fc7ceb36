package watcher

import "errors"

// Error taxonomy for the startup/replay/live protocol (spec.md §7). All three
// are fatal: the operator logs and exits, restart policy lives outside this
// package.
var (
	// ErrConfigMismatch is raised when persisted config diverges from the
	// ContractConfig the Watcher was started with.
	ErrConfigMismatch = errors.New("watcher: persisted config does not match on-chain config")

	// ErrCachePruned is raised when a replay is requested from before the
	// pruning horizon; the caller must fully resync from persisted state.
	ErrCachePruned = errors.New("watcher: requested replay predates the pruning horizon")

	// ErrReorgInvariantViolated is raised when a chain reorg removes a log
	// that was already applied to State.
	ErrReorgInvariantViolated = errors.New("watcher: an already-applied event was removed by a chain reorg")
)
