package merkletree

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(n byte) string {
	b := make([]byte, 20)
	b[19] = n
	s := "0x"
	for _, by := range b {
		s += hexByte(by)
	}
	return s
}

func hexByte(b byte) string {
	const hexdigits = "0123456789abcdef"
	return string([]byte{hexdigits[b>>4], hexdigits[b&0xf]})
}

func TestBuildEmptyInput(t *testing.T) {
	_, err := Build(nil, 1)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestSingleMemberPathIsZeroSibling(t *testing.T) {
	tr, err := Build([]Leaf{{Address: addr(1), Earnings: big.NewInt(100)}}, 0)
	require.NoError(t, err)

	path, err := tr.Path(addr(1))
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, Digest{}, path[0])

	leaf, err := LeafHashFor(0, addr(1), big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, VerifyPath(leaf, path, tr.RootHash()))

	// with no hashing of the zero sibling, root equals the raw leaf hash
	assert.Equal(t, leaf, tr.RootHash())
}

func TestTwoMembersNoPadding(t *testing.T) {
	members := []Leaf{
		{Address: addr(1), Earnings: big.NewInt(10)},
		{Address: addr(2), Earnings: big.NewInt(20)},
	}
	tr, err := Build(members, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.BranchCount())

	for _, m := range members {
		path, err := tr.Path(m.Address)
		require.NoError(t, err)
		require.Len(t, path, 1)

		leaf, err := LeafHashFor(0, m.Address, m.Earnings)
		require.NoError(t, err)
		assert.True(t, VerifyPath(leaf, path, tr.RootHash()))
	}
}

func TestThreeMembersTrailingZeroLeaf(t *testing.T) {
	members := []Leaf{
		{Address: addr(1), Earnings: big.NewInt(1)},
		{Address: addr(2), Earnings: big.NewInt(2)},
		{Address: addr(3), Earnings: big.NewInt(3)},
	}
	tr, err := Build(members, 7)
	require.NoError(t, err)

	for _, m := range members {
		path, err := tr.Path(m.Address)
		require.NoError(t, err)
		assert.Len(t, path, 2)

		leaf, err := LeafHashFor(7, m.Address, m.Earnings)
		require.NoError(t, err)
		assert.True(t, VerifyPath(leaf, path, tr.RootHash()))
	}
}

func TestPowerOfTwoMemberCounts(t *testing.T) {
	for k := 1; k <= 6; k++ {
		n := 1 << k
		var members []Leaf
		for i := 0; i < n; i++ {
			members = append(members, Leaf{Address: addr(byte(i + 1)), Earnings: big.NewInt(int64(i + 1))})
		}
		tr, err := Build(members, 42)
		require.NoError(t, err)

		for _, m := range members {
			path, err := tr.Path(m.Address)
			require.NoError(t, err)
			assert.Len(t, path, k)

			leaf, err := LeafHashFor(42, m.Address, m.Earnings)
			require.NoError(t, err)
			assert.True(t, VerifyPath(leaf, path, tr.RootHash()))
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	members := []Leaf{
		{Address: addr(5), Earnings: big.NewInt(500)},
		{Address: addr(1), Earnings: big.NewInt(100)},
		{Address: addr(3), Earnings: big.NewInt(300)},
		{Address: addr(2), Earnings: big.NewInt(200)},
		{Address: addr(4), Earnings: big.NewInt(400)},
	}
	sorted := []Leaf{members[1], members[3], members[2], members[4], members[0]}

	t1, err := Build(sorted, 99)
	require.NoError(t, err)
	t2, err := Build(sorted, 99)
	require.NoError(t, err)

	assert.Equal(t, t1.RootHash(), t2.RootHash())
	assert.Equal(t, t1.hashes, t2.hashes)
}

func TestPathNotFound(t *testing.T) {
	tr, err := Build([]Leaf{{Address: addr(1), Earnings: big.NewInt(1)}}, 0)
	require.NoError(t, err)

	_, err = tr.Path(addr(99))
	require.ErrorIs(t, err, ErrNotFound)
}
