// Package ledger implements the deterministic, event-sourced accounting
// engine: the member set, revenue distribution, and the committed/withdrawable
// block history built on top of it.
package ledger

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/andrey/dataunion-core/internal/address"
	"github.com/andrey/dataunion-core/internal/merkletree"
)

// StateRecord is the neutral, persistable snapshot of a State: everything
// needed to resume after restart without replaying from genesis.
type StateRecord struct {
	AdminAddress         string   `json:"adminAddress"`
	AdminFeeFraction     string   `json:"adminFeeFraction"`
	BlockFreezeSeconds   int64    `json:"blockFreezeSeconds"`
	CurrentBlockNumber   int64    `json:"currentBlockNumber"`
	CurrentTimestamp     int64    `json:"currentTimestamp"`
	LastProcessedBlock   int64    `json:"lastProcessedBlock"`
	LastMessageTimestamp int64    `json:"lastMessageTimestamp"`
	Members              []Record `json:"members"`

	// TokenAddress and CommunityAddress are opaque to State (spec.md §4.6
	// describes the Store's config record as opaque) and are carried only
	// so the Watcher can cross-check persisted vs. configured token and
	// community addresses at startup (spec.md §4.5 step 2).
	TokenAddress     string `json:"tokenAddress,omitempty"`
	CommunityAddress string `json:"communityAddress,omitempty"`
}

// Store is the narrow persistence contract the State engine depends on
// (spec.md §4.6). Implementations live outside this package (see
// internal/store) so the core never imports an infra library directly.
type Store interface {
	LoadState() (StateRecord, bool, error)
	SaveState(StateRecord) error
	LoadBlock(blockNumber int64) (*Block, error) // ErrNotFound if absent
	SaveBlock(*Block) error
}

// Counts reports the member-count breakdown returned by GetMemberCount.
type Counts struct {
	Active int
	Total  int
}

// State is the single-community accounting engine: a fold over an ordered
// event stream (see eventstream.Merge) applied one event at a time from a
// single logical execution context (spec.md §5 — no internal locking).
type State struct {
	blockFreezeSeconds int64
	store              Store
	adminAddress       string
	adminFeeFraction   *big.Int // 1e18-scaled

	members map[string]*Member

	currentBlockNumber int64
	currentTimestamp   int64

	latestCommittedBlock *Block
	committedByNumber    map[int64]*Block
}

// feeScale is the fixed-point scale admin fee fractions are expressed in.
var feeScale = big.NewInt(1_000_000_000_000_000_000)

// NewState constructs a State seeded with initialMembers (e.g. from the
// persisted latest committed block, per the Watcher startup protocol).
func NewState(blockFreezeSeconds int64, initialMembers []Member, store Store, adminAddress string, adminFeeFraction *big.Int, currentBlockNumber, currentTimestamp int64) *State {
	s := &State{
		blockFreezeSeconds: blockFreezeSeconds,
		store:              store,
		adminAddress:       adminAddress,
		adminFeeFraction:   new(big.Int).Set(adminFeeFraction),
		members:            make(map[string]*Member, len(initialMembers)),
		currentBlockNumber: currentBlockNumber,
		currentTimestamp:   currentTimestamp,
		committedByNumber:  make(map[int64]*Block),
	}
	for i := range initialMembers {
		m := initialMembers[i].Clone()
		s.members[m.Address] = &m
	}
	if currentBlockNumber > 0 {
		if b, err := store.LoadBlock(currentBlockNumber); err == nil {
			s.committedByNumber[currentBlockNumber] = b
			s.latestCommittedBlock = b
		}
	}
	return s
}

// OnJoin inserts newly-seen addresses with zero earnings, or reactivates
// known-but-inactive ones. Idempotent on already-active addresses.
func (s *State) OnJoin(addresses []string, timestamp int64) error {
	for _, raw := range addresses {
		a, err := address.Normalize(raw)
		if err != nil {
			return err
		}
		m, ok := s.members[a]
		if !ok {
			nm, err := NewMember(a)
			if err != nil {
				return err
			}
			s.members[a] = nm
			continue
		}
		m.SetActive(true)
	}
	s.currentTimestamp = timestamp
	return nil
}

// OnPart marks each address inactive. Unknown or malformed addresses are a
// silent no-op.
func (s *State) OnPart(addresses []string, timestamp int64) {
	for _, raw := range addresses {
		a, err := address.Normalize(raw)
		if err != nil {
			continue
		}
		if m, ok := s.members[a]; ok {
			m.SetActive(false)
		}
	}
	s.currentTimestamp = timestamp
}

// OnRevenue distributes amount among active members, reserving
// floor(amount*adminFeeFraction) plus any rounding dust for the admin
// address, which is credited as a synthetic, never-active member created on
// its first non-zero credit (spec.md §4.3). No floating point anywhere in
// this path.
func (s *State) OnRevenue(amount *big.Int, timestamp int64) {
	activeAddrs := s.sortedActiveAddresses()

	adminShare := new(big.Int).Mul(amount, s.adminFeeFraction)
	adminShare.Div(adminShare, feeScale)
	remainder := new(big.Int).Sub(amount, adminShare)

	if len(activeAddrs) == 0 {
		s.addAdminEarnings(amount)
		s.currentTimestamp = timestamp
		return
	}

	activeCount := big.NewInt(int64(len(activeAddrs)))
	perMember := new(big.Int).Div(remainder, activeCount)
	distributed := new(big.Int).Mul(perMember, activeCount)
	dust := new(big.Int).Sub(remainder, distributed)

	for _, a := range activeAddrs {
		s.members[a].AddRevenue(perMember)
	}
	s.addAdminEarnings(new(big.Int).Add(adminShare, dust))
	s.currentTimestamp = timestamp
}

func (s *State) sortedActiveAddresses() []string {
	var addrs []string
	for a, m := range s.members {
		if m.Active {
			addrs = append(addrs, a)
		}
	}
	sort.Strings(addrs)
	return addrs
}

func (s *State) addAdminEarnings(amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	m, ok := s.members[s.adminAddress]
	if !ok {
		nm, err := NewMember(s.adminAddress)
		if err != nil {
			// adminAddress was already validated at construction time.
			panic(fmt.Sprintf("ledger: invalid admin address %q", s.adminAddress))
		}
		nm.Active = false
		s.members[s.adminAddress] = nm
		m = nm
	}
	m.AddRevenue(amount)
}

// OnAdminFeeChanged replaces adminFeeFraction. Applies to subsequent
// revenues only; already-committed blocks are untouched.
func (s *State) OnAdminFeeChanged(newFraction *big.Int, timestamp int64) {
	s.adminFeeFraction = new(big.Int).Set(newFraction)
	s.currentTimestamp = timestamp
}

// OnBlockCreated snapshots the current member set into a new Block and
// persists it. It takes no root hash: the rootHash carried by an on-chain
// BlockCreated event is not compared against the snapshot's Merkle root,
// neither here nor by the Watcher.
func (s *State) OnBlockCreated(blockNumber, timestamp int64) (*Block, error) {
	block := NewBlock(blockNumber, timestamp, s.members, s.adminAddress, s.adminFeeFraction)
	if err := s.store.SaveBlock(block); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	s.committedByNumber[blockNumber] = block
	s.latestCommittedBlock = block
	s.currentBlockNumber = blockNumber
	s.currentTimestamp = timestamp
	return block, nil
}

// CurrentBlockNumber returns the number of the most recently committed
// block (0 if none has been committed yet).
func (s *State) CurrentBlockNumber() int64 { return s.currentBlockNumber }

// CurrentTimestamp returns the timestamp of the most recently applied
// event.
func (s *State) CurrentTimestamp() int64 { return s.currentTimestamp }

// PreviewBlock builds a Block from the current real-time member set without
// persisting it, so a caller (the Operator, triggering a commit) can learn
// the would-be root hash before the on-chain transaction lands and the
// matching BlockCreated event flows back through the normal event stream
// (spec.md §4.7).
func (s *State) PreviewBlock(blockNumber, timestamp int64) *Block {
	return NewBlock(blockNumber, timestamp, s.members, s.adminAddress, s.adminFeeFraction)
}

// Proof is the materialized result of GetProofAt: a withdrawal path and the
// member's cumulative earnings as of the committed block.
type Proof struct {
	Path     []merkletree.Digest
	Earnings *big.Int
}

// GetProofAt returns the withdrawal path for address within the committed
// block identified by blockNumber. A member with zero earnings in that
// block yields an empty path (not an error); an unknown block is ErrNoBlock,
// an address absent from the block's snapshot is ErrNotAMember.
func (s *State) GetProofAt(addr string, blockNumber int64) (Proof, error) {
	canon, err := address.Normalize(addr)
	if err != nil {
		return Proof{}, err
	}
	block, err := s.blockAt(blockNumber)
	if err != nil {
		return Proof{}, err
	}
	path, earnings, err := block.Path(canon)
	if err != nil {
		return Proof{}, err
	}
	if earnings.Sign() == 0 {
		return Proof{Path: nil, Earnings: earnings}, nil
	}
	return Proof{Path: path, Earnings: earnings}, nil
}

// blockAt loads a committed block, consulting the in-memory cache first and
// falling back to the Store (blocks are immutable once saved, so this cache
// never needs invalidation).
func (s *State) blockAt(blockNumber int64) (*Block, error) {
	if b, ok := s.committedByNumber[blockNumber]; ok {
		return b, nil
	}
	b, err := s.store.LoadBlock(blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d", ErrNoBlock, blockNumber)
	}
	s.committedByNumber[blockNumber] = b
	return b, nil
}

// GetLatestBlock returns the most recently committed block, or nil if none.
func (s *State) GetLatestBlock() *Block {
	return s.latestCommittedBlock
}

// GetLatestWithdrawableBlock returns the latest committed block whose
// timestamp is older than now-blockFreezeSeconds, or nil if none qualifies.
// Block numbers are sequential (PreviewCommit proposes CurrentBlockNumber()+1
// and OnBlockCreated records the number it is given), so this walks
// backward from the most recently committed number, consulting Store via
// blockAt for any block not already cached — the same fallback GetProofAt
// relies on — so this survives an operator restart instead of only serving
// the live cache.
func (s *State) GetLatestWithdrawableBlock(nowMs int64) *Block {
	cutoff := nowMs - s.blockFreezeSeconds*1000
	for n := s.currentBlockNumber; n >= 1; n-- {
		b, err := s.blockAt(n)
		if err != nil {
			continue
		}
		if b.Timestamp < cutoff {
			return b
		}
	}
	return nil
}

// GetMemberCount returns the active/total member-count breakdown.
func (s *State) GetMemberCount() Counts {
	c := Counts{Total: len(s.members)}
	for _, m := range s.members {
		if m.Active {
			c.Active++
		}
	}
	return c
}

// Snapshot returns the current, persistable StateRecord.
func (s *State) Snapshot(lastProcessedBlock, lastMessageTimestamp int64) StateRecord {
	addrs := make([]string, 0, len(s.members))
	for a := range s.members {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	records := make([]Record, 0, len(addrs))
	for _, a := range addrs {
		records = append(records, s.members[a].ToRecord())
	}

	return StateRecord{
		AdminAddress:         s.adminAddress,
		AdminFeeFraction:     s.adminFeeFraction.String(),
		BlockFreezeSeconds:   s.blockFreezeSeconds,
		CurrentBlockNumber:   s.currentBlockNumber,
		CurrentTimestamp:     s.currentTimestamp,
		LastProcessedBlock:   lastProcessedBlock,
		LastMessageTimestamp: lastMessageTimestamp,
		Members:              records,
	}
}
