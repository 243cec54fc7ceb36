// Package operator implements the thin commit-trigger wrapper around
// internal/watcher described in spec.md §2's component table and expanded
// in SPEC_FULL.md §4.7. It is grounded on the teacher's
// internal/services/scheduler + internal/services/epoch split: Scheduler
// there is the polling loop this package's Start corresponds to, and
// epoch.Service is the thin commit-trigger interface TriggerCommit plays
// the same role as here.
package operator

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/dataunion-core/internal/merkletree"
	"github.com/andrey/dataunion-core/internal/watcher"
)

// Operator owns a Watcher (unidirectional ownership per spec.md §9 — Store
// is injected into the Watcher as a capability, never a back-reference) and
// exposes the commit-trigger surface an external wallet drives.
type Operator struct {
	watcher *watcher.Watcher
	logger  lgr.L

	mu     sync.Mutex
	cancel context.CancelFunc
	doneCh chan error
}

// New constructs an Operator around an already-configured Watcher.
func New(logger lgr.L, w *watcher.Watcher) *Operator {
	return &Operator{watcher: w, logger: logger}
}

// Start runs the Watcher's startup protocol and then blocks processing live
// events until ctx is cancelled or Shutdown is called (spec.md §4.7).
func (o *Operator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	doneCh := make(chan error, 1)

	o.mu.Lock()
	o.cancel = cancel
	o.doneCh = doneCh
	o.mu.Unlock()

	o.logger.Logf("INFO operator: starting watcher")
	err := o.watcher.Run(runCtx)
	doneCh <- err
	if err != nil {
		o.logger.Logf("ERROR operator: watcher exited: %v", err)
		return err
	}
	o.logger.Logf("INFO operator: watcher stopped cleanly")
	return nil
}

// TriggerCommit builds a Block from State's real-time view, builds its
// MerkleTree, and returns (blockNumber, rootHash) for the caller — the
// external wallet — to submit on-chain (spec.md §4.7).
func (o *Operator) TriggerCommit(ctx context.Context) (int64, merkletree.Digest, error) {
	var blockNumber int64
	var root merkletree.Digest
	var previewErr error

	if err := o.watcher.Enqueue(ctx, func() {
		blockNumber, root, previewErr = o.watcher.PreviewCommit()
	}); err != nil {
		return 0, merkletree.Digest{}, fmt.Errorf("operator: trigger commit: %w", err)
	}
	return blockNumber, root, previewErr
}

// OnCommitConfirmed applies a confirmed on-chain commit to State immediately,
// without waiting for the matching BlockCreated chain event to arrive on the
// next poll cycle — useful for synchronous commit flows and tests. The same
// event also flows back through the normal chain event stream; OnBlockCreated
// is idempotent for a repeated blockNumber with identical contents (spec.md
// §4.6), so applying it twice is harmless.
func (o *Operator) OnCommitConfirmed(ctx context.Context, blockNumber, timestampMs int64) error {
	var confirmErr error
	if err := o.watcher.Enqueue(ctx, func() {
		confirmErr = o.watcher.ConfirmCommit(blockNumber, timestampMs)
	}); err != nil {
		return fmt.Errorf("operator: on commit confirmed: %w", err)
	}
	return confirmErr
}

// Shutdown cooperatively stops the Watcher: cancels its run context and
// waits for the in-flight store write (if any) to finish before returning
// (spec.md §5).
func (o *Operator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	cancel, doneCh := o.cancel, o.doneCh
	o.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
