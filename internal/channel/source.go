package channel

import "context"

// Source is the narrow interface the Watcher depends on: a single
// subscription that replays everything at or after fromTimestampMs and then
// continues live (spec.md §4.9).
type Source interface {
	Subscribe(ctx context.Context, fromTimestampMs int64) (<-chan Message, error)
}
