package chain

import "context"

// Source is the narrow interface the Watcher depends on: a bounded
// historical range query plus a live subscription, decoupled from any
// particular chain client so it can be faked in tests (spec.md §4.8).
type Source interface {
	Head(ctx context.Context) (uint64, error)
	FilterRange(ctx context.Context, from, to uint64) ([]Event, error)
	SubscribeNew(ctx context.Context) (<-chan Event, error)
}
