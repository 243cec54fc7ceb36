package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAdminFeeChanged(t *testing.T) {
	data, err := eventsABI.Events["AdminFeeChanged"].Inputs.NonIndexed().Pack(big.NewInt(200_000_000_000_000_000))
	require.NoError(t, err)

	fee, err := decodeAdminFeeChanged(data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200_000_000_000_000_000), fee)
}

func TestDecodeBlockCreated(t *testing.T) {
	var root [32]byte
	root[0] = 0xAB
	data, err := eventsABI.Events["BlockCreated"].Inputs.NonIndexed().Pack(big.NewInt(7), root, "ipfs-hash")
	require.NoError(t, err)

	decoded, err := decodeBlockCreated(data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), decoded.BlockNumber)
	assert.Equal(t, root, decoded.RootHash)
	assert.Equal(t, "ipfs-hash", decoded.IPFSHash)
}

func TestDecodeTransferValue(t *testing.T) {
	data, err := eventsABI.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(12345))
	require.NoError(t, err)

	value, err := decodeTransferValue(data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12345), value)
}

func TestDecodeDispatchesByTopic(t *testing.T) {
	feeData, err := eventsABI.Events["AdminFeeChanged"].Inputs.NonIndexed().Pack(big.NewInt(1))
	require.NoError(t, err)

	log := types.Log{
		Topics:      []common.Hash{adminFeeChangedTopic},
		Data:        feeData,
		BlockNumber: 100,
		TxIndex:     1,
		Index:       2,
	}

	ev, err := decode(LogMeta{BlockNumber: 100, TxIndex: 1, LogIndex: 2, BlockTimestampMs: 9999}, log)
	require.NoError(t, err)
	afc, ok := ev.(AdminFeeChanged)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1), afc.AdminFee)
	assert.Equal(t, int64(9999), afc.Meta().BlockTimestampMs)
}

func TestDecodeUnknownTopicIsIgnored(t *testing.T) {
	log := types.Log{Topics: []common.Hash{{0xff}}}
	ev, err := decode(LogMeta{}, log)
	require.NoError(t, err)
	assert.Nil(t, ev)
}
