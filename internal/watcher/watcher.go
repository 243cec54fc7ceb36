// Package watcher implements the subscribe/replay/live protocol described
// in spec.md §4.5: it merges the chain and channel streams via
// internal/eventstream and dispatches them one at a time into a
// ledger.State, from a single goroutine so State never needs locking
// (spec.md §5).
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/dataunion-core/internal/chain"
	"github.com/andrey/dataunion-core/internal/channel"
	"github.com/andrey/dataunion-core/internal/eventstream"
	"github.com/andrey/dataunion-core/internal/ledger"
	"github.com/andrey/dataunion-core/internal/merkletree"
)

// ContractConfig is the token/community configuration the Watcher is started
// with, cross-checked against persisted state at startup (spec.md §4.5 step
// 2). The Watcher does not read it from the contract: cmd/operator fills it
// from the command-line config.
type ContractConfig struct {
	TokenAddress     string
	CommunityAddress string
}

// replayDrain bounds how long the startup replay waits for the channel
// source to flush its backlog of buffered messages before merging them with
// the chain's historical log range. The channel source itself has already
// replayed everything at or after lastMessageTimestamp by the time this
// window elapses; it is not a correctness boundary, just how long we are
// willing to hold up the live switchover for slow backlog delivery.
const replayDrain = 50 * time.Millisecond

// Watcher subscribes to both input streams, maintains the message cache and
// replay bookkeeping spec.md §4.5 describes, and is the sole writer of the
// State it is given (not owned — passed in, per spec.md §3 Ownership).
type Watcher struct {
	chainSource   chain.Source
	channelSource channel.Source
	state         *ledger.State
	store         ledger.Store
	logger        lgr.L

	contractCfg ContractConfig

	lastProcessedBlock   int64
	lastMessageTimestamp int64

	msgCache        []channel.Message
	cachePrunedUpTo int64

	liveChannelMsgs <-chan channel.Message
	commands        chan func()
}

// New constructs a Watcher. lastProcessedBlock/lastMessageTimestamp seed the
// replay range and are normally read off a previously persisted
// ledger.StateRecord.
func New(logger lgr.L, chainSource chain.Source, channelSource channel.Source, state *ledger.State, store ledger.Store, contractCfg ContractConfig, lastProcessedBlock, lastMessageTimestamp int64) *Watcher {
	return &Watcher{
		chainSource:          chainSource,
		channelSource:        channelSource,
		state:                state,
		store:                store,
		logger:               logger,
		contractCfg:          contractCfg,
		lastProcessedBlock:   lastProcessedBlock,
		lastMessageTimestamp: lastMessageTimestamp,
		commands:             make(chan func()),
	}
}

// Run executes the startup protocol (spec.md §4.5 steps 2-6) and then blocks
// in live mode (step 7) until ctx is cancelled. A fatal error (ConfigMismatch,
// ReorgInvariantViolated, any propagated Source/Store error) returns non-nil
// and the caller — the Operator — is expected to log and exit (spec.md §7).
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.checkConfig(); err != nil {
		return err
	}
	if err := w.replay(ctx); err != nil {
		return err
	}
	return w.live(ctx)
}

// checkConfig cross-checks persisted config against the contractCfg the
// Watcher was constructed with (spec.md §4.5 step 2).
func (w *Watcher) checkConfig() error {
	rec, found, err := w.store.LoadState()
	if err != nil {
		return fmt.Errorf("watcher: load persisted config: %w", err)
	}
	if !found || (rec.TokenAddress == "" && rec.CommunityAddress == "") {
		return nil
	}
	if rec.TokenAddress != w.contractCfg.TokenAddress || rec.CommunityAddress != w.contractCfg.CommunityAddress {
		return fmt.Errorf("%w: persisted token=%s community=%s, observed token=%s community=%s",
			ErrConfigMismatch, rec.TokenAddress, rec.CommunityAddress,
			w.contractCfg.TokenAddress, w.contractCfg.CommunityAddress)
	}
	return nil
}

// replay executes steps 3-6: subscribe to the channel, query the chain's
// historical log range, merge, and apply.
func (w *Watcher) replay(ctx context.Context) error {
	msgCh, err := w.channelSource.Subscribe(ctx, w.lastMessageTimestamp)
	if err != nil {
		return fmt.Errorf("watcher: channel subscribe: %w", err)
	}

	head, err := w.chainSource.Head(ctx)
	if err != nil {
		return fmt.Errorf("watcher: chain head: %w", err)
	}

	var chainEvents []chain.Event
	if head > uint64(w.lastProcessedBlock) {
		from := uint64(w.lastProcessedBlock + 1)
		chainEvents, err = w.chainSource.FilterRange(ctx, from, head)
		if err != nil {
			return fmt.Errorf("watcher: filter range [%d,%d]: %w", from, head, err)
		}
	}

	buffered := drainBuffered(ctx, msgCh, replayDrain)

	items := eventstream.Merge(chainEvents, buffered)
	for _, it := range items {
		if err := w.applyItem(it); err != nil {
			return err
		}
	}

	if len(chainEvents) > 0 {
		w.lastProcessedBlock = int64(head)
	}
	w.cacheMessages(buffered)
	w.liveChannelMsgs = msgCh

	return w.persist()
}

// drainBuffered collects whatever msgCh has ready within window, without
// blocking indefinitely — the channel source has already replayed its full
// backlog from fromTimestampMs by the time callers reach this point; this
// just gives that delivery a bounded moment to land before the merge.
func drainBuffered(ctx context.Context, msgCh <-chan channel.Message, window time.Duration) []channel.Message {
	var out []channel.Message
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-timer.C:
			return out
		case <-ctx.Done():
			return out
		}
	}
}

// live implements step 7: a single select loop applying new chain events and
// channel messages to State immediately on arrival, and servicing commands
// enqueued by the Operator (TriggerCommit / OnCommitConfirmed), all from
// this one goroutine (spec.md §5).
func (w *Watcher) live(ctx context.Context) error {
	chainCh, err := w.chainSource.SubscribeNew(ctx)
	if err != nil {
		return fmt.Errorf("watcher: chain subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return w.persist()

		case fn, ok := <-w.commands:
			if !ok {
				continue
			}
			fn()

		case ev, ok := <-chainCh:
			if !ok {
				chainCh = nil
				continue
			}
			if ev.Meta().Removed {
				return fmt.Errorf("%w: %+v", ErrReorgInvariantViolated, ev)
			}
			if err := w.applyChainEvent(ev); err != nil {
				return err
			}
			w.lastProcessedBlock = int64(ev.Meta().BlockNumber)
			if err := w.persist(); err != nil {
				return err
			}

		case msg, ok := <-w.liveChannelMsgs:
			if !ok {
				w.liveChannelMsgs = nil
				continue
			}
			if err := w.applyChannelMessage(msg); err != nil {
				return err
			}
			w.cacheMessages([]channel.Message{msg})
			if err := w.persist(); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) applyItem(it eventstream.Item) error {
	if it.Chain != nil {
		return w.applyChainEvent(it.Chain)
	}
	return w.applyChannelMessage(*it.Channel)
}

func (w *Watcher) applyChainEvent(ev chain.Event) error {
	ts := ev.Meta().BlockTimestampMs
	switch e := ev.(type) {
	case chain.AdminFeeChanged:
		w.state.OnAdminFeeChanged(e.AdminFee, ts)
	case chain.BlockCreated:
		if _, err := w.state.OnBlockCreated(e.BlockNumber.Int64(), ts); err != nil {
			return fmt.Errorf("watcher: apply BlockCreated: %w", err)
		}
	case chain.TokenTransfer:
		w.state.OnRevenue(e.Value, ts)
	default:
		w.logger.Logf("WARN watcher: unrecognized chain event %T ignored", ev)
	}
	return nil
}

func (w *Watcher) applyChannelMessage(msg channel.Message) error {
	switch msg.Type {
	case channel.Join:
		if err := w.state.OnJoin(msg.Addresses, msg.MessageID.Timestamp); err != nil {
			return fmt.Errorf("watcher: apply join: %w", err)
		}
	case channel.Part:
		w.state.OnPart(msg.Addresses, msg.MessageID.Timestamp)
	default:
		w.logger.Logf("WARN watcher: unrecognized channel message type %q ignored", msg.Type)
	}
	w.lastMessageTimestamp = msg.MessageID.Timestamp
	return nil
}

// cacheMessages appends msgs to the forward-growing message cache.
func (w *Watcher) cacheMessages(msgs []channel.Message) {
	w.msgCache = append(w.msgCache, msgs...)
}

// PruneCache evicts cached messages older than State's current timestamp and
// records the new pruning horizon (spec.md §4.5 "Cache pruning").
func (w *Watcher) PruneCache() {
	cutoff := w.state.CurrentTimestamp()
	kept := w.msgCache[:0]
	for _, m := range w.msgCache {
		if m.MessageID.Timestamp >= cutoff {
			kept = append(kept, m)
		}
	}
	w.msgCache = kept
	if cutoff > w.cachePrunedUpTo {
		w.cachePrunedUpTo = cutoff
	}
}

// Replay returns every cached message at or after fromTimestampMs, or
// ErrCachePruned if fromTimestampMs predates the pruning horizon — the
// caller must fully resync from persisted state in that case.
func (w *Watcher) Replay(fromTimestampMs int64) ([]channel.Message, error) {
	if fromTimestampMs < w.cachePrunedUpTo {
		return nil, fmt.Errorf("%w: requested %d, pruned up to %d", ErrCachePruned, fromTimestampMs, w.cachePrunedUpTo)
	}
	var out []channel.Message
	for _, m := range w.msgCache {
		if m.MessageID.Timestamp >= fromTimestampMs {
			out = append(out, m)
		}
	}
	return out, nil
}

// persist snapshots State and commits it through Store, carrying the
// replay bookkeeping (lastProcessedBlock/lastMessageTimestamp) and the
// contract config (for the next startup's ConfigMismatch check) alongside
// it.
func (w *Watcher) persist() error {
	rec := w.state.Snapshot(w.lastProcessedBlock, w.lastMessageTimestamp)
	rec.TokenAddress = w.contractCfg.TokenAddress
	rec.CommunityAddress = w.contractCfg.CommunityAddress
	if err := w.store.SaveState(rec); err != nil {
		return fmt.Errorf("watcher: persist state: %w", err)
	}
	return nil
}

// Enqueue runs fn on the Watcher's own goroutine and blocks until it
// completes, giving Operator methods a safe way to touch State without a
// lock (spec.md §5). It must only be called while live(ctx) is running.
func (w *Watcher) Enqueue(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case w.commands <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PreviewCommit builds a Block from State's real-time view without
// persisting it (spec.md §4.7 TriggerCommit).
func (w *Watcher) PreviewCommit() (int64, merkletree.Digest, error) {
	nextBlockNumber := w.state.CurrentBlockNumber() + 1
	block := w.state.PreviewBlock(nextBlockNumber, w.state.CurrentTimestamp())
	root, err := block.RootHash()
	if err != nil {
		return 0, merkletree.Digest{}, fmt.Errorf("watcher: preview commit: %w", err)
	}
	return nextBlockNumber, root, nil
}

// ConfirmCommit applies a confirmed on-chain commit to State, persisting the
// resulting Block (spec.md §4.7 OnCommitConfirmed).
func (w *Watcher) ConfirmCommit(blockNumber, timestampMs int64) error {
	if _, err := w.state.OnBlockCreated(blockNumber, timestampMs); err != nil {
		return fmt.Errorf("watcher: confirm commit: %w", err)
	}
	return w.persist()
}
