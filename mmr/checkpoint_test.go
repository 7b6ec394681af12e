// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	"testing"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/quarry"
)

func TestCheckpointRoundTrip(t *testing.T) {
	deleted := roaring.New()
	deleted.Add(1)
	deleted.Add(7)
	cp := NewCheckPoint([]quarry.Bytes32{leaf(0), leaf(1)}, deleted, 42)

	data, err := rlp.EncodeToBytes(cp)
	require.NoError(t, err)

	var decoded CheckPoint
	require.NoError(t, rlp.DecodeBytes(data, &decoded))

	assert.Equal(t, cp.NodesAdded(), decoded.NodesAdded())
	assert.Equal(t, uint64(42), decoded.Rank())
	assert.True(t, cp.NodesDeleted().Equals(decoded.NodesDeleted()))

	// byte-for-byte bitmap semantics preserved
	reencoded, err := rlp.EncodeToBytes(&decoded)
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)
}

func TestCheckpointImmutability(t *testing.T) {
	deleted := roaring.New()
	deleted.Add(3)
	cp := NewCheckPoint([]quarry.Bytes32{leaf(0)}, deleted, 0)

	// later mutation of the source bitmap must not leak in
	deleted.Add(9)
	assert.False(t, cp.NodesDeleted().Contains(9))

	// nor mutation of the returned copy
	cp.NodesDeleted().Add(5)
	assert.False(t, cp.NodesDeleted().Contains(5))
}

func TestMergeCheckPoints(t *testing.T) {
	d0 := roaring.New()
	cp0 := NewCheckPoint([]quarry.Bytes32{leaf(0), leaf(1)}, d0, 0)

	d1 := roaring.New()
	d1.Add(0)
	cp1 := NewCheckPoint([]quarry.Bytes32{leaf(2)}, d1, 1)

	d2 := roaring.New()
	d2.Add(2)
	cp2 := NewCheckPoint(nil, d2, 2)

	merged, err := MergeCheckPoints([]*CheckPoint{cp0, cp1, cp2})
	require.NoError(t, err)

	assert.Equal(t, []quarry.Bytes32{leaf(0), leaf(1), leaf(2)}, merged.NodesAdded())
	assert.Equal(t, uint64(2), merged.Rank())
	assert.True(t, merged.NodesDeleted().Contains(0))
	assert.True(t, merged.NodesDeleted().Contains(2))
	assert.Equal(t, uint64(2), merged.NodesDeleted().GetCardinality())

	_, err = MergeCheckPoints(nil)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	// non-consecutive ranks are rejected
	_, err = MergeCheckPoints([]*CheckPoint{cp0, cp2})
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}
