// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/quarry"
)

func smtKey(i int) []byte {
	h := quarry.Blake2b([]byte(fmt.Sprintf("key-%d", i)))
	return h.Bytes()
}

func smtValue(i int) quarry.Bytes32 {
	return quarry.Blake2b([]byte(fmt.Sprintf("value-%d", i)))
}

func TestEmptyTree(t *testing.T) {
	tree := NewTree()
	assert.Equal(t, 0, tree.Size())

	h, err := tree.Hash()
	require.NoError(t, err)
	assert.Equal(t, EmptyNodeHash, h)

	_, found, err := tree.Get(smtKey(0))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsertGet(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 50; i++ {
		require.NoError(t, tree.Upsert(smtKey(i), smtValue(i)))
	}
	assert.Equal(t, 50, tree.Size())

	for i := 0; i < 50; i++ {
		v, found, err := tree.Get(smtKey(i))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, smtValue(i), v)
	}

	// update keeps size, changes hash
	before, err := tree.Hash()
	require.NoError(t, err)
	require.NoError(t, tree.Upsert(smtKey(7), smtValue(777)))
	assert.Equal(t, 50, tree.Size())
	after, err := tree.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	v, _, _ := tree.Get(smtKey(7))
	assert.Equal(t, smtValue(777), v)
}

func TestIllegalKey(t *testing.T) {
	tree := NewTree()
	assert.ErrorIs(t, tree.Upsert([]byte("short"), smtValue(0)), ErrIllegalKey)
	assert.ErrorIs(t, tree.Delete([]byte("short")), ErrIllegalKey)
	_, _, err := tree.Get(make([]byte, 33))
	assert.ErrorIs(t, err, ErrIllegalKey)
}

func TestDelete(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 10; i++ {
		require.NoError(t, tree.Upsert(smtKey(i), smtValue(i)))
	}

	require.NoError(t, tree.Delete(smtKey(4)))
	assert.Equal(t, 9, tree.Size())
	_, found, err := tree.Get(smtKey(4))
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, tree.Delete(smtKey(4)), ErrKeyNotFound)
	assert.ErrorIs(t, NewTree().Delete(smtKey(0)), ErrKeyNotFound)
}

// Upserting in any order yields the same final hash.
func TestOrderIndependence(t *testing.T) {
	const n = 30
	ref := NewTree()
	for i := 0; i < n; i++ {
		require.NoError(t, ref.Upsert(smtKey(i), smtValue(i)))
	}
	want, err := ref.Hash()
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		perm := rng.Perm(n)
		tree := NewTree()
		for _, i := range perm {
			require.NoError(t, tree.Upsert(smtKey(i), smtValue(i)))
		}
		got, err := tree.Hash()
		require.NoError(t, err)
		assert.Equal(t, want, got, "permutation %v", perm)
	}
}

// delete(key) after upsert(key, v) restores the previous root.
func TestInsertDeleteInverse(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 20; i++ {
		require.NoError(t, tree.Upsert(smtKey(i), smtValue(i)))
	}
	before, err := tree.Hash()
	require.NoError(t, err)

	require.NoError(t, tree.Upsert(smtKey(99), smtValue(99)))
	mid, err := tree.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, before, mid)

	require.NoError(t, tree.Delete(smtKey(99)))
	after, err := tree.Hash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 20, tree.Size())
}

// Deleting down to one key collapses every intermediate branch.
func TestCollapseToLeaf(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Upsert(smtKey(0), smtValue(0)))
	only, err := tree.Hash()
	require.NoError(t, err)

	for i := 1; i < 8; i++ {
		require.NoError(t, tree.Upsert(smtKey(i), smtValue(i)))
	}
	for i := 1; i < 8; i++ {
		require.NoError(t, tree.Delete(smtKey(i)))
	}

	got, err := tree.Hash()
	require.NoError(t, err)
	assert.Equal(t, only, got)
	assert.Equal(t, 1, tree.Size())

	_, ok := tree.root.(*leafNode)
	assert.True(t, ok, "root should collapse back to a bare leaf")
}
