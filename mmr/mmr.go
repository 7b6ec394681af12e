// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package mmr implements a Merkle Mountain Range, an append-only hash
// accumulator over an ordered leaf sequence. Nodes live in a flat array in
// postorder; the forest of perfect binary trees implied by the leaf count
// is committed to a single root by bagging the peaks.
package mmr

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/quarry"
)

// MountainRange is the append-only accumulator core. It is not safe for
// concurrent use; callers serialize access.
type MountainRange struct {
	backend   Backend
	maxLeaves int
}

// New creates a MountainRange over the given backend. The backend may
// already contain nodes from a previous run.
func New(backend Backend) *MountainRange {
	return &MountainRange{backend: backend, maxLeaves: math.MaxUint32}
}

// Len returns the total node count, leaves and parents.
func (m *MountainRange) Len() int {
	return m.backend.Len()
}

// LeafCount returns the number of appended leaves.
func (m *MountainRange) LeafCount() int {
	n, err := leafCount(m.backend.Len())
	if err != nil {
		// the backend size is only ever produced by Append
		panic(err)
	}
	return n
}

// Append adds a leaf hash and returns its leaf index. Parent nodes
// completed by this leaf are computed and stored as well.
func (m *MountainRange) Append(leaf quarry.Bytes32) (int, error) {
	leafIndex := m.LeafCount()
	if leafIndex >= m.maxLeaves {
		return 0, ErrMaximumSizeReached
	}

	pos := m.backend.Len()
	if _, err := m.backend.Push(leaf); err != nil {
		return 0, err
	}

	// while the next position is a parent, the just-written node is a right
	// child: hash it with its left sibling and push the parent
	hash := leaf
	height := 0
	for posHeight(pos+1) > height {
		left, ok := m.backend.Get(pos - (2<<uint(height)) + 1)
		if !ok {
			return 0, errors.Wrap(ErrInvalidMerkleTree, "missing left sibling")
		}
		hash = hashNodes(left, hash)
		if _, err := m.backend.Push(hash); err != nil {
			return 0, err
		}
		pos++
		height++
	}
	return leafIndex, nil
}

// GetNodeHash returns the hash at the given node position.
func (m *MountainRange) GetNodeHash(pos int) (quarry.Bytes32, error) {
	h, ok := m.backend.Get(pos)
	if !ok {
		return quarry.Bytes32{}, ErrHashNotFound
	}
	return h, nil
}

// GetLeafHash returns the hash of the leaf with the given leaf index.
func (m *MountainRange) GetLeafHash(leafIndex int) (quarry.Bytes32, error) {
	if leafIndex < 0 || leafIndex >= m.LeafCount() {
		return quarry.Bytes32{}, ErrHashNotFound
	}
	return m.GetNodeHash(leafPos(leafIndex))
}

// Root bags the current peaks into a single commitment. The peaks are
// folded most-significant (largest tree) first via iterated pairwise
// hashing; this ordering is a tested convention. An empty range commits
// to the zero hash.
func (m *MountainRange) Root() (quarry.Bytes32, error) {
	size := m.backend.Len()
	if size == 0 {
		return quarry.Bytes32{}, nil
	}
	peaks, err := peakPositions(size)
	if err != nil {
		return quarry.Bytes32{}, err
	}

	root, ok := m.backend.Get(peaks[0])
	if !ok {
		return quarry.Bytes32{}, errors.Wrap(ErrInvalidMerkleTree, "missing peak")
	}
	for _, p := range peaks[1:] {
		h, ok := m.backend.Get(p)
		if !ok {
			return quarry.Bytes32{}, errors.Wrap(ErrInvalidMerkleTree, "missing peak")
		}
		root = hashNodes(root, h)
	}
	return root, nil
}

// Validate recomputes every parent node and compares it with the stored
// value. A mismatch is a fatal integrity failure.
func (m *MountainRange) Validate() error {
	size := m.backend.Len()
	for pos := 0; pos < size; pos++ {
		height := posHeight(pos)
		if height == 0 {
			continue
		}
		// children of a postorder parent: right is pos-1, left is
		// pos-1 minus the right subtree size
		right, okR := m.backend.Get(pos - 1)
		left, okL := m.backend.Get(pos - (1 << uint(height)))
		stored, okP := m.backend.Get(pos)
		if !okR || !okL || !okP {
			return errors.Wrap(ErrInvalidMerkleTree, "missing node")
		}
		if hashNodes(left, right) != stored {
			return errors.Wrapf(ErrInvalidMerkleTree, "parent mismatch at position %d", pos)
		}
	}
	return nil
}

func hashNodes(left, right quarry.Bytes32) quarry.Bytes32 {
	return quarry.Blake2b(left[:], right[:])
}

// posHeight returns the height of the node at the given postorder
// position. Leaves are height 0.
func posHeight(pos int) int {
	p := uint64(pos) + 1
	// walk left until the 1-based position is all ones, which marks the
	// rightmost node of a perfect tree
	for p&(p+1) != 0 {
		p -= uint64(1)<<(bits.Len64(p)-1) - 1
	}
	return bits.Len64(p) - 1
}

// leafPos converts a leaf index to its node position.
func leafPos(leafIndex int) int {
	return 2*leafIndex - bits.OnesCount64(uint64(leafIndex))
}

// peakPositions decomposes an MMR of the given node count into the
// positions of its peaks, largest tree first.
func peakPositions(size int) ([]int, error) {
	var (
		peaks      []int
		pos        int
		prevHeight = 64
	)
	remaining := size
	for remaining > 0 {
		// the largest perfect tree that fits
		height := bits.Len64(uint64(remaining)+1) - 2
		if height < 0 || height >= prevHeight {
			return nil, errors.Wrapf(ErrInvalidMerkleTree, "node count %d is not a valid mmr size", size)
		}
		treeSize := 1<<uint(height+1) - 1
		peaks = append(peaks, pos+treeSize-1)
		pos += treeSize
		remaining -= treeSize
		prevHeight = height
	}
	return peaks, nil
}

// leafCount returns the number of leaves in an MMR with the given node count.
func leafCount(size int) (int, error) {
	peaks, err := peakPositions(size)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range peaks {
		n += 1 << uint(posHeight(p))
	}
	return n, nil
}
