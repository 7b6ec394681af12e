// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"math/bits"

	"github.com/quarrylabs/quarry/quarry"
)

// KeySize is the fixed key width in bytes.
const KeySize = 32

// EmptyNodeHash is the well-known hash an empty subtree commits to.
var EmptyNodeHash = quarry.Bytes32{}

var (
	leafPrefix   = []byte{0x00}
	branchPrefix = []byte{0x01}
)

// node is either nil (empty), *leafNode or *branchNode.
type node interface {
	isNode()
}

type leafNode struct {
	key   quarry.Bytes32
	value quarry.Bytes32
}

func (*leafNode) isNode() {}

type branchNode struct {
	left  node
	right node

	hash  quarry.Bytes32
	dirty bool
}

func (*branchNode) isNode() {}

func newBranch(left, right node) *branchNode {
	return &branchNode{left: left, right: right, dirty: true}
}

// hashOf computes (and caches, for branches) the commitment of a subtree.
// Leaf hash is blake2b(0x00 || key || value), branch hash is
// blake2b(0x01 || left || right), empty is EmptyNodeHash.
func hashOf(n node) (quarry.Bytes32, error) {
	switch v := n.(type) {
	case nil:
		return EmptyNodeHash, nil
	case *leafNode:
		return quarry.Blake2b(leafPrefix, v.key[:], v.value[:]), nil
	case *branchNode:
		if !v.dirty {
			return v.hash, nil
		}
		left, err := hashOf(v.left)
		if err != nil {
			return quarry.Bytes32{}, err
		}
		right, err := hashOf(v.right)
		if err != nil {
			return quarry.Bytes32{}, err
		}
		v.hash = quarry.Blake2b(branchPrefix, left[:], right[:])
		v.dirty = false
		return v.hash, nil
	default:
		return quarry.Bytes32{}, ErrUnexpectedNodeType
	}
}

// mutateValue writes a new value hash into a leaf.
func mutateValue(n node, value quarry.Bytes32) error {
	switch v := n.(type) {
	case *leafNode:
		v.value = value
		return nil
	case *branchNode:
		return ErrCannotMutateBranchNode
	default:
		return ErrUnexpectedNodeType
	}
}

// keyBit returns the bit of the key at the given depth, most significant
// bit of the first byte first.
func keyBit(key quarry.Bytes32, depth int) int {
	return int(key[depth/8]>>(7-uint(depth)%8)) & 1
}

// firstDiffBit returns the index of the first bit where the two keys
// differ, or -1 when equal.
func firstDiffBit(a, b quarry.Bytes32) int {
	for i := 0; i < KeySize; i++ {
		if x := a[i] ^ b[i]; x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return -1
}
