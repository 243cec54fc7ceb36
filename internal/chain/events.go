// Package chain decodes the three on-chain event kinds the Watcher consumes
// (AdminFeeChanged, BlockCreated, Transfer-to-vault) and resolves block
// timestamps, without pulling in the full generated contract ABI bindings
// (out of scope; see abi.go for the minimal hand-written fragment).
package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LogMeta is embedded in every decoded chain event: the coordinates needed
// for EventMerge's tie-break rule (blockNumber, txIndex, logIndex) plus the
// resolved block timestamp.
type LogMeta struct {
	BlockNumber      uint64
	TxIndex          uint64
	LogIndex         uint64
	BlockTimestampMs int64
	// Removed is set when the node reports this log was reverted by a
	// reorg. The Watcher treats a Removed event that was already applied
	// to State as fatal (spec.md §4.5, §7 ErrReorgInvariantViolated).
	Removed bool
}

// Event is implemented by every decoded chain event kind.
type Event interface {
	Meta() LogMeta
}

// AdminFeeChanged is emitted when the community's admin fee fraction
// changes. AdminFee is 1e18-scaled, matching ledger.State's representation.
type AdminFeeChanged struct {
	LogMeta
	AdminFee *big.Int
}

// Meta implements Event.
func (e AdminFeeChanged) Meta() LogMeta { return e.LogMeta }

// BlockCreated is emitted when the operator's on-chain commit transaction is
// mined, confirming a Merkle root the off-chain State already computed.
// BlockNumber here is the community's own block counter (not the chain's
// block number, which lives in the embedded LogMeta).
type BlockCreated struct {
	LogMeta
	BlockNumber *big.Int
	RootHash    [32]byte
	IPFSHash    string
}

// Meta implements Event.
func (e BlockCreated) Meta() LogMeta { return e.LogMeta }

// TokenTransfer is a Transfer event addressed to the community's vault,
// signaling new revenue available for distribution.
type TokenTransfer struct {
	LogMeta
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Meta implements Event.
func (e TokenTransfer) Meta() LogMeta { return e.LogMeta }
