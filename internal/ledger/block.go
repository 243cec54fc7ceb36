package ledger

import (
	"math/big"
	"sort"
	"sync"

	"github.com/andrey/dataunion-core/internal/merkletree"
)

// Block is an immutable snapshot of all members at the moment a commit was
// made, together with the admin terms in effect at that moment. Its Merkle
// tree is built lazily and cached, since many blocks are read (e.g. during
// replay) without ever needing a proof.
type Block struct {
	BlockNumber      int64
	Timestamp        int64 // unix ms
	Members          []Member
	TotalEarnings    *big.Int
	AdminAddress     string
	AdminFeeFraction *big.Int // 1e18-scaled

	treeOnce sync.Once
	tree     *merkletree.Tree
	treeErr  error
}

// NewBlock snapshots members (sorted by address for determinism) into a new
// Block. The caller retains no aliasing: each Member is cloned.
func NewBlock(blockNumber int64, timestamp int64, members map[string]*Member, adminAddress string, adminFeeFraction *big.Int) *Block {
	addrs := make([]string, 0, len(members))
	for a := range members {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	snapshot := make([]Member, 0, len(addrs))
	total := big.NewInt(0)
	for _, a := range addrs {
		m := members[a].Clone()
		snapshot = append(snapshot, m)
		total.Add(total, m.Earnings)
	}

	return &Block{
		BlockNumber:      blockNumber,
		Timestamp:        timestamp,
		Members:          snapshot,
		TotalEarnings:    total,
		AdminAddress:     adminAddress,
		AdminFeeFraction: new(big.Int).Set(adminFeeFraction),
	}
}

// MerkleTree builds (once) and returns the block's Merkle tree over its
// member snapshot. Every snapshot member gets a leaf, active or not and
// including members with zero earnings; members are already address-sorted
// from NewBlock.
func (b *Block) MerkleTree() (*merkletree.Tree, error) {
	b.treeOnce.Do(func() {
		leaves := make([]merkletree.Leaf, len(b.Members))
		for i, m := range b.Members {
			leaves[i] = merkletree.Leaf{Address: m.Address, Earnings: m.Earnings}
		}
		b.tree, b.treeErr = merkletree.Build(leaves, b.BlockNumber)
	})
	return b.tree, b.treeErr
}

// Path returns the withdrawal path and leaf earnings for addr within this
// block, or ErrNotAMember if addr has no entry in the snapshot.
func (b *Block) Path(addr string) ([]merkletree.Digest, *big.Int, error) {
	for _, m := range b.Members {
		if m.Address == addr {
			tree, err := b.MerkleTree()
			if err != nil {
				return nil, nil, err
			}
			path, err := tree.Path(addr)
			if err != nil {
				return nil, nil, ErrNotAMember
			}
			return path, m.Earnings, nil
		}
	}
	return nil, nil, ErrNotAMember
}

// RootHash returns the block's committed Merkle root.
func (b *Block) RootHash() (merkletree.Digest, error) {
	tree, err := b.MerkleTree()
	if err != nil {
		return merkletree.Digest{}, err
	}
	return tree.RootHash(), nil
}
