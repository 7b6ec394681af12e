// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package smt implements a sparse merkle tree: a path-compressed binary
// trie keyed by a fixed-width hash. Unlike the MMR, whose commitment
// depends on the leaf sequence, the tree's hash depends only on the final
// key to value-hash mapping, so it supports direct keyed deletion.
package smt

import (
	"github.com/quarrylabs/quarry/quarry"
)

// Tree is a sparse merkle tree. It is not safe for concurrent use;
// callers serialize access.
type Tree struct {
	root node
	size int
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Size returns the number of keys in the tree.
func (t *Tree) Size() int {
	return t.size
}

// Hash returns the root commitment. An empty tree commits to
// EmptyNodeHash, and the hash is a pure function of the key/value set,
// independent of insertion order.
func (t *Tree) Hash() (quarry.Bytes32, error) {
	return hashOf(t.root)
}

// Get returns the value hash stored under the key.
func (t *Tree) Get(key []byte) (quarry.Bytes32, bool, error) {
	k, err := checkKey(key)
	if err != nil {
		return quarry.Bytes32{}, false, err
	}

	n := t.root
	depth := 0
	for {
		switch v := n.(type) {
		case nil:
			return quarry.Bytes32{}, false, nil
		case *leafNode:
			if v.key == k {
				return v.value, true, nil
			}
			return quarry.Bytes32{}, false, nil
		case *branchNode:
			if keyBit(k, depth) == 0 {
				n = v.left
			} else {
				n = v.right
			}
			depth++
		default:
			return quarry.Bytes32{}, false, ErrUnexpectedNodeType
		}
	}
}

// Upsert inserts the key or updates its value hash.
func (t *Tree) Upsert(key []byte, valueHash quarry.Bytes32) error {
	k, err := checkKey(key)
	if err != nil {
		return err
	}
	root, added, err := t.upsert(t.root, k, valueHash, 0)
	if err != nil {
		return err
	}
	t.root = root
	if added {
		t.size++
	}
	return nil
}

func (t *Tree) upsert(n node, key quarry.Bytes32, value quarry.Bytes32, depth int) (node, bool, error) {
	switch v := n.(type) {
	case nil:
		return &leafNode{key: key, value: value}, true, nil
	case *leafNode:
		if v.key == key {
			if err := mutateValue(v, value); err != nil {
				return nil, false, err
			}
			return v, false, nil
		}
		split, err := splitLeaf(v, &leafNode{key: key, value: value}, depth)
		if err != nil {
			return nil, false, err
		}
		return split, true, nil
	case *branchNode:
		if keyBit(key, depth) == 0 {
			child, added, err := t.upsert(v.left, key, value, depth+1)
			if err != nil {
				return nil, false, err
			}
			v.left = child
			v.dirty = true
			return v, added, nil
		}
		child, added, err := t.upsert(v.right, key, value, depth+1)
		if err != nil {
			return nil, false, err
		}
		v.right = child
		v.dirty = true
		return v, added, nil
	default:
		return nil, false, ErrUnexpectedNodeType
	}
}

// splitLeaf replaces a colliding leaf with branch nodes down to the first
// bit where the two keys differ.
func splitLeaf(existing, fresh *leafNode, depth int) (node, error) {
	diff := firstDiffBit(existing.key, fresh.key)
	if diff < depth {
		// equal keys are handled before splitting; a diff above the
		// current depth means a leaf sits on a path its key contradicts
		return nil, ErrInvalidChildKey
	}

	var bottom node
	if keyBit(existing.key, diff) == 0 {
		bottom = newBranch(existing, fresh)
	} else {
		bottom = newBranch(fresh, existing)
	}
	// single-child branches above the divergence point, empty on the
	// unused side
	for lvl := diff - 1; lvl >= depth; lvl-- {
		if keyBit(existing.key, lvl) == 0 {
			bottom = newBranch(bottom, nil)
		} else {
			bottom = newBranch(nil, bottom)
		}
	}
	return bottom, nil
}

// Delete removes the key and collapses any branch left without two live
// children back toward the nearest ancestor that keeps the invariant.
func (t *Tree) Delete(key []byte) error {
	k, err := checkKey(key)
	if err != nil {
		return err
	}
	root, err := t.delete(t.root, k, 0)
	if err != nil {
		return err
	}
	t.root = root
	t.size--
	return nil
}

func (t *Tree) delete(n node, key quarry.Bytes32, depth int) (node, error) {
	switch v := n.(type) {
	case nil:
		return nil, ErrKeyNotFound
	case *leafNode:
		if v.key != key {
			return nil, ErrKeyNotFound
		}
		return nil, nil
	case *branchNode:
		if keyBit(key, depth) == 0 {
			child, err := t.delete(v.left, key, depth+1)
			if err != nil {
				return nil, err
			}
			v.left = child
		} else {
			child, err := t.delete(v.right, key, depth+1)
			if err != nil {
				return nil, err
			}
			v.right = child
		}
		v.dirty = true
		return collapse(v), nil
	default:
		return nil, ErrUnexpectedNodeType
	}
}

// collapse lifts a lone leaf through its single-child parent. A branch
// child stays put: its depth encodes which bit it discriminates.
func collapse(v *branchNode) node {
	if v.left == nil && v.right == nil {
		return nil
	}
	if v.left == nil {
		if leaf, ok := v.right.(*leafNode); ok {
			return leaf
		}
	}
	if v.right == nil {
		if leaf, ok := v.left.(*leafNode); ok {
			return leaf
		}
	}
	return v
}

func checkKey(key []byte) (quarry.Bytes32, error) {
	if len(key) != KeySize {
		return quarry.Bytes32{}, ErrIllegalKey
	}
	var k quarry.Bytes32
	copy(k[:], key)
	return k, nil
}
