package eventstream

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey/dataunion-core/internal/chain"
	"github.com/andrey/dataunion-core/internal/channel"
)

func chainEv(ts int64, blockNumber, txIndex, logIndex uint64, fee int64) chain.Event {
	return chain.AdminFeeChanged{
		LogMeta: chain.LogMeta{
			BlockNumber:      blockNumber,
			TxIndex:          txIndex,
			LogIndex:         logIndex,
			BlockTimestampMs: ts,
		},
		AdminFee: big.NewInt(fee),
	}
}

func channelMsg(ts int64, addr string) channel.Message {
	return channel.Message{
		Type:      channel.Join,
		Addresses: []string{addr},
		MessageID: channel.MessageID{Timestamp: ts, UUID: addr},
	}
}

func TestMergeOrdersByTimestamp(t *testing.T) {
	items := Merge(
		[]chain.Event{chainEv(300, 3, 0, 0, 1), chainEv(100, 1, 0, 0, 2)},
		[]channel.Message{channelMsg(200, "a")},
	)
	require.Len(t, items, 3)
	assert.Equal(t, int64(100), items[0].Timestamp())
	assert.Equal(t, int64(200), items[1].Timestamp())
	assert.Equal(t, int64(300), items[2].Timestamp())
}

func TestMergeChainPrecedesChannelAtEqualTimestamp(t *testing.T) {
	items := Merge(
		[]chain.Event{chainEv(100, 1, 0, 0, 1)},
		[]channel.Message{channelMsg(100, "a")},
	)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Chain)
	assert.NotNil(t, items[1].Channel)
}

func TestMergeChainTiesBreakByBlockTxLogIndex(t *testing.T) {
	// Deliberately given out of order; expect sorted by (block, tx, log).
	items := Merge(
		[]chain.Event{
			chainEv(100, 5, 1, 0, 3),
			chainEv(100, 5, 0, 1, 1),
			chainEv(100, 5, 0, 0, 2),
		},
		nil,
	)
	require.Len(t, items, 3)
	assert.Equal(t, int64(2), items[0].Chain.(chain.AdminFeeChanged).AdminFee.Int64())
	assert.Equal(t, int64(1), items[1].Chain.(chain.AdminFeeChanged).AdminFee.Int64())
	assert.Equal(t, int64(3), items[2].Chain.(chain.AdminFeeChanged).AdminFee.Int64())
}

func TestMergeChannelTiesPreserveInsertionOrder(t *testing.T) {
	items := Merge(nil, []channel.Message{
		channelMsg(100, "first"),
		channelMsg(100, "second"),
		channelMsg(100, "third"),
	})
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Channel.Addresses[0])
	assert.Equal(t, "second", items[1].Channel.Addresses[0])
	assert.Equal(t, "third", items[2].Channel.Addresses[0])
}

func TestMergeIsStableUnderShuffledButTiedInputs(t *testing.T) {
	chainEvents := []chain.Event{
		chainEv(50, 2, 0, 0, 1),
		chainEv(50, 1, 5, 0, 2),
		chainEv(50, 1, 0, 9, 3),
		chainEv(50, 1, 0, 0, 4),
	}
	want := []int64{4, 3, 2, 1}

	items := Merge(chainEvents, nil)
	require.Len(t, items, 4)
	for i, w := range want {
		assert.Equal(t, w, items[i].Chain.(chain.AdminFeeChanged).AdminFee.Int64())
	}
}
