package ledger

import "errors"

// Error taxonomy for the state engine and its Store contract (spec.md §7).
// ConfigMismatch, CachePruned and ReorgInvariantViolated belong to the
// watcher package; these are the errors the ledger itself can surface.
var (
	// ErrNotFound is returned when an address or block is looked up and
	// absent. Never fatal: callers treat it as a normal negative result.
	ErrNotFound = errors.New("ledger: not found")

	// ErrNoBlock is returned by GetProofAt when the requested blockNumber
	// has not been committed.
	ErrNoBlock = errors.New("ledger: block not committed")

	// ErrNotAMember is returned by GetProofAt when the address has no
	// entry in the committed block's snapshot.
	ErrNotAMember = errors.New("ledger: not a member of this block")

	// ErrStoreFailed wraps any persistence failure; fatal, restart expected.
	ErrStoreFailed = errors.New("ledger: store operation failed")
)
