package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlockSortsMembersByAddress(t *testing.T) {
	members := map[string]*Member{
		addrC: {Address: addrC, Earnings: big.NewInt(3), Active: true},
		addrA: {Address: addrA, Earnings: big.NewInt(1), Active: true},
		addrB: {Address: addrB, Earnings: big.NewInt(2), Active: true},
	}
	b := NewBlock(1, 100, members, adminAddr, big.NewInt(0))

	require.Len(t, b.Members, 3)
	assert.Equal(t, addrA, b.Members[0].Address)
	assert.Equal(t, addrB, b.Members[1].Address)
	assert.Equal(t, addrC, b.Members[2].Address)
	assert.Equal(t, big.NewInt(6), b.TotalEarnings)
}

func TestNewBlockClonesMembers(t *testing.T) {
	src := &Member{Address: addrA, Earnings: big.NewInt(5), Active: true}
	members := map[string]*Member{addrA: src}
	b := NewBlock(1, 100, members, adminAddr, big.NewInt(0))

	src.AddRevenue(big.NewInt(1000))
	assert.Equal(t, big.NewInt(5), b.Members[0].Earnings)
}

func TestBlockPathUnknownAddressIsErrNotAMember(t *testing.T) {
	members := map[string]*Member{addrA: {Address: addrA, Earnings: big.NewInt(1), Active: true}}
	b := NewBlock(1, 100, members, adminAddr, big.NewInt(0))

	_, _, err := b.Path(addrB)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestBlockMerkleTreeBuildsOnce(t *testing.T) {
	members := map[string]*Member{
		addrA: {Address: addrA, Earnings: big.NewInt(1), Active: true},
		addrB: {Address: addrB, Earnings: big.NewInt(2), Active: true},
	}
	b := NewBlock(1, 100, members, adminAddr, big.NewInt(0))

	tree1, err := b.MerkleTree()
	require.NoError(t, err)
	tree2, err := b.MerkleTree()
	require.NoError(t, err)
	assert.Same(t, tree1, tree2)
}
