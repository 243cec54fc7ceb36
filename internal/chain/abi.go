package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// eventsABI is a minimal ABI fragment covering only the three event
// signatures the Watcher consumes. The full contract ABI is a generated
// binding and out of scope here (spec.md §1) — this is hand-written against
// just what decoding requires.
const eventsABIJSON = `[
	{"anonymous": false, "inputs": [{"indexed": false, "name": "adminFee", "type": "uint256"}], "name": "AdminFeeChanged", "type": "event"},
	{"anonymous": false, "inputs": [
		{"indexed": false, "name": "blockNumber", "type": "uint256"},
		{"indexed": false, "name": "rootHash", "type": "bytes32"},
		{"indexed": false, "name": "ipfsHash", "type": "string"}
	], "name": "BlockCreated", "type": "event"},
	{"anonymous": false, "inputs": [
		{"indexed": true, "name": "from", "type": "address"},
		{"indexed": true, "name": "to", "type": "address"},
		{"indexed": false, "name": "value", "type": "uint256"}
	], "name": "Transfer", "type": "event"}
]`

var eventsABI = mustParseEventsABI()

func mustParseEventsABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(eventsABIJSON))
	if err != nil {
		panic("chain: invalid embedded events ABI: " + err.Error())
	}
	return parsed
}

var (
	adminFeeChangedTopic = eventsABI.Events["AdminFeeChanged"].ID
	blockCreatedTopic    = eventsABI.Events["BlockCreated"].ID
	transferTopic        = eventsABI.Events["Transfer"].ID
)

// topics returns the event-signature topics FilterRange subscribes to.
func topics() []common.Hash {
	return []common.Hash{adminFeeChangedTopic, blockCreatedTopic, transferTopic}
}

// decodeAdminFeeChanged unpacks a non-indexed AdminFeeChanged log body.
func decodeAdminFeeChanged(data []byte) (*big.Int, error) {
	var out struct {
		AdminFee *big.Int
	}
	if err := eventsABI.UnpackIntoInterface(&out, "AdminFeeChanged", data); err != nil {
		return nil, err
	}
	return out.AdminFee, nil
}

type decodedBlockCreated struct {
	BlockNumber *big.Int
	RootHash    [32]byte
	IPFSHash    string `abi:"ipfsHash"`
}

// decodeBlockCreated unpacks a non-indexed BlockCreated log body.
func decodeBlockCreated(data []byte) (*decodedBlockCreated, error) {
	var out decodedBlockCreated
	if err := eventsABI.UnpackIntoInterface(&out, "BlockCreated", data); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeTransferValue unpacks the non-indexed value field of a Transfer log;
// From/To are indexed and read directly from topics by the caller.
func decodeTransferValue(data []byte) (*big.Int, error) {
	var out struct {
		Value *big.Int
	}
	if err := eventsABI.UnpackIntoInterface(&out, "Transfer", data); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// addressFromTopic decodes an indexed address topic (left-padded to 32 bytes;
// the address is the last 20).
func addressFromTopic(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}
