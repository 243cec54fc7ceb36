// Package eventstream merges the chain event stream and the channel message
// stream into the single ordered sequence the ledger State consumes
// (spec.md §4.4).
package eventstream

import (
	"sort"

	"github.com/andrey/dataunion-core/internal/chain"
	"github.com/andrey/dataunion-core/internal/channel"
)

// Item is one entry in the merged stream: exactly one of Chain or Channel
// is set.
type Item struct {
	Chain   chain.Event
	Channel *channel.Message
}

// Timestamp returns the ordering key: the resolved block timestamp for a
// chain event, the server timestamp for a channel message.
func (it Item) Timestamp() int64 {
	if it.Chain != nil {
		return it.Chain.Meta().BlockTimestampMs
	}
	return it.Channel.MessageID.Timestamp
}

// Merge combines chainEvents and channelMessages into one sequence ordered
// strictly by timestamp ascending. Ties are broken deterministically:
// chain events precede channel messages at equal timestamps; chain-event
// ties break by (blockNumber, txIndex, logIndex); channel-message ties
// preserve their original (insertion) order.
//
// chainEvents and channelMessages are each assumed already in their natural
// arrival order; Merge does not reorder within a single source beyond what
// the tie-break rules require.
func Merge(chainEvents []chain.Event, channelMessages []channel.Message) []Item {
	items := make([]Item, 0, len(chainEvents)+len(channelMessages))
	for i := range chainEvents {
		items = append(items, Item{Chain: chainEvents[i]})
	}
	for i := range channelMessages {
		items = append(items, Item{Channel: &channelMessages[i]})
	}

	// A single comparator ordering by (timestamp, chain-before-channel,
	// blockNumber, txIndex, logIndex, channel insertion index). Every pair
	// is fully resolved by one of these keys, so the ordering is a valid
	// strict weak ordering (unlike comparing within-source and cross-source
	// ties in separate passes, which is not transitive).
	channelIndex := make(map[*channel.Message]int, len(channelMessages))
	for i := range channelMessages {
		channelIndex[&channelMessages[i]] = i
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j], channelIndex)
	})

	return items
}

// less is a single strict weak ordering over (timestamp, chain-before-channel,
// blockNumber, txIndex, logIndex, channel insertion index). Exactly one of
// each pair's tie-break fields applies at any level, so it is transitive.
func less(a, b Item, channelIndex map[*channel.Message]int) bool {
	ta, tb := a.Timestamp(), b.Timestamp()
	if ta != tb {
		return ta < tb
	}
	aChain, bChain := a.Chain != nil, b.Chain != nil
	if aChain != bChain {
		return aChain // chain events precede channel messages at a tie
	}
	if aChain {
		am, bm := a.Chain.Meta(), b.Chain.Meta()
		if am.BlockNumber != bm.BlockNumber {
			return am.BlockNumber < bm.BlockNumber
		}
		if am.TxIndex != bm.TxIndex {
			return am.TxIndex < bm.TxIndex
		}
		return am.LogIndex < bm.LogIndex
	}
	return channelIndex[a.Channel] < channelIndex[b.Channel]
}
