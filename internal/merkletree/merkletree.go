// Package merkletree builds the sibling-sorted Merkle tree committed
// on-chain at the end of an epoch and serves the per-member withdrawal
// paths checked against it.
//
// The layout and hashing rules here are fixed by the on-chain verifier
// (see leafHash / combine) and must stay bit-exact: this is not an
// interchangeable tree implementation, it is a specific one.
package merkletree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/andrey/dataunion-core/internal/address"
)

// ErrEmptyInput is returned by Build when given no members.
var ErrEmptyInput = errors.New("merkletree: empty input")

// ErrNotFound is returned by Path when the address has no leaf in the tree.
var ErrNotFound = errors.New("merkletree: address not found")

// Digest is a 32-byte keccak256 hash.
type Digest [32]byte

// Hex renders the digest as a 0x-prefixed lowercase hex string.
func (d Digest) Hex() string {
	return fmt.Sprintf("0x%x", [32]byte(d))
}

// Leaf is the minimal per-member input to Build: a canonical address and its
// cumulative earnings at commit time.
type Leaf struct {
	Address  string
	Earnings *big.Int
}

// Tree is the array-backed Merkle tree described in spec.md §4.1: a
// contiguous slice of branchCount+leafCount digests, branch nodes occupying
// [1, branchCount), leaves occupying [branchCount, branchCount+leafCount).
// hashes[0] is not a hash; it holds branchCount as a convenience so the
// layout is self-describing.
type Tree struct {
	hashes      []Digest
	indexOf     map[string]int
	branchCount int
	leafCount   int
}

// Build constructs a Tree over members, ordered exactly as given (callers
// sort by address beforehand — see NewBlock in block.go — so that build is a
// pure function of the sorted member sequence). blockNumber is mixed into
// every leaf hash as a per-tree salt; blockNumber 0 means no salt (the empty
// string).
func Build(members []Leaf, blockNumber int64) (*Tree, error) {
	if len(members) == 0 {
		return nil, ErrEmptyInput
	}

	leafCount := len(members)
	if leafCount%2 != 0 {
		leafCount++
	}
	if leafCount > 1<<31 {
		return nil, fmt.Errorf("merkletree: leaf count %d exceeds maximum", leafCount)
	}
	branchCount := nextPowerOfTwo(leafCount)

	t := &Tree{
		hashes:      make([]Digest, branchCount+leafCount),
		indexOf:     make(map[string]int, len(members)),
		branchCount: branchCount,
		leafCount:   leafCount,
	}
	// hashes[0] is the branchCount sentinel, not a hash (spec.md §4.1 §3).
	binary.BigEndian.PutUint64(t.hashes[0][24:], uint64(branchCount))

	salt := ""
	if blockNumber != 0 {
		salt = strconv.FormatInt(blockNumber, 10)
	}

	for i, m := range members {
		canon, err := address.Lower(m.Address)
		if err != nil {
			return nil, err
		}
		slot := branchCount + i
		t.hashes[slot] = leafHash(salt, canon, m.Earnings)
		t.indexOf[canon] = slot
	}

	t.buildBranches()
	return t, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// leafHash computes keccak256(ascii(blockNumber) || ascii(address) || hex64(earnings))
// as a single UTF-8 byte string, matching the on-chain verifier's
// abi.encodePacked concatenation (spec.md §4.1, §6).
func leafHash(blockSalt string, lowerAddr string, earnings *big.Int) Digest {
	var buf bytes.Buffer
	buf.WriteString(blockSalt)
	buf.WriteString(lowerAddr)
	buf.WriteString(hex64(earnings))
	return Digest(crypto.Keccak256Hash(buf.Bytes()))
}

// hex64 renders a non-negative big integer as 64 lowercase hex digits
// (32 bytes, big-endian, zero-padded).
func hex64(v *big.Int) string {
	b := make([]byte, 32)
	v.FillBytes(b)
	return fmt.Sprintf("%x", b)
}

func (t *Tree) buildBranches() {
	for lvlStart := t.branchCount; lvlStart >= 2; lvlStart >>= 1 {
		for i := lvlStart; i < lvlStart*2; i += 2 {
			if i >= len(t.hashes) {
				// past the last leaf pair: both children are missing
				break
			}
			left, right := t.hashes[i], t.hashes[i+1]
			if isZero(left) && isZero(right) {
				break
			}
			if isZero(right) {
				t.hashes[i/2] = left
				continue
			}
			t.hashes[i/2] = combine(left, right)
		}
	}
}

func isZero(d Digest) bool {
	return d == Digest{}
}

// combine hashes two sibling digests in sorted order, so a verifier walking
// a path never needs to know which side a sibling was on.
func combine(a, b Digest) Digest {
	lo, hi := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		lo, hi = b, a
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, lo[:]...)
	buf = append(buf, hi[:]...)
	return Digest(crypto.Keccak256Hash(buf))
}

// RootHash returns the tree's root digest, hashes[1].
func (t *Tree) RootHash() Digest {
	return t.hashes[1]
}

// Path returns the ordered sibling digests from addr's leaf up to (not
// including) the root.
func (t *Tree) Path(addr string) ([]Digest, error) {
	canon, err := address.Lower(addr)
	if err != nil {
		return nil, err
	}
	i, ok := t.indexOf[canon]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}

	var path []Digest
	for i > 1 {
		path = append(path, t.hashes[i^1])
		i >>= 1
	}
	return path, nil
}

// LeafIndex returns the array slot of addr's leaf, for callers that need it
// alongside a path (e.g. on-chain verifiers that take an explicit index).
func (t *Tree) LeafIndex(addr string) (int, bool) {
	canon, err := address.Lower(addr)
	if err != nil {
		return 0, false
	}
	i, ok := t.indexOf[canon]
	return i, ok
}

// BranchCount returns the tree's branch-node count (a power of two).
func (t *Tree) BranchCount() int { return t.branchCount }

// VerifyPath recomputes the root from a leaf hash and its path, matching the
// on-chain verifier's algorithm exactly (spec.md §6). Used by tests to
// confirm a generated proof actually validates.
func VerifyPath(leaf Digest, path []Digest, root Digest) bool {
	acc := leaf
	for _, sibling := range path {
		if isZero(sibling) {
			continue
		}
		acc = combine(acc, sibling)
	}
	return acc == root
}

// LeafHashFor computes the leaf digest for a single member the same way
// Build does, so callers can verify a path without rebuilding the tree.
func LeafHashFor(blockNumber int64, addr string, earnings *big.Int) (Digest, error) {
	canon, err := address.Lower(addr)
	if err != nil {
		return Digest{}, err
	}
	salt := ""
	if blockNumber != 0 {
		salt = strconv.FormatInt(blockNumber, 10)
	}
	return leafHash(salt, canon, earnings), nil
}
