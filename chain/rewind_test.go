// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/tx"
)

// extends the chain with n blocks, block i creating output seed+i and
// spending the previous block's output
func extendChain(t *testing.T, repo *Repository, n int, seed byte) []*block.Block {
	var blocks []*block.Block
	parent := repo.BestHeader()
	work := repo.Metadata().AccumulatedDifficulty
	var prevOut *tx.TransactionOutput

	for i := 0; i < n; i++ {
		work += 100
		out := mintOutput(seed + byte(i))
		var ins []*tx.TransactionInput
		if prevOut != nil {
			ins = append(ins, spend(prevOut))
		}
		b := buildBlock(parent, work, []*tx.TransactionOutput{out}, ins)
		result, err := repo.AddBlock(b)
		require.NoError(t, err)
		require.Equal(t, BlockAddOk, result.Status)
		blocks = append(blocks, b)
		parent = b.Header()
		prevOut = out
	}
	return blocks
}

func TestRewindToHeight(t *testing.T) {
	repo, _ := newTestRepo(t)
	blocks := extendChain(t, repo, 4, 10)

	rootsAt4 := repo.Roots()

	ch := make(chan BlockEvent, 10)
	sub := repo.SubscribeBlockEvent(ch)
	defer sub.Unsubscribe()

	removed, err := repo.RewindToHeight(2)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, blocks[2].Hash(), removed[0].Hash())
	assert.Equal(t, blocks[3].Hash(), removed[1].Hash())

	meta := repo.Metadata()
	assert.Equal(t, uint64(2), meta.HeightOfLongestChain)
	assert.Equal(t, blocks[1].Hash(), meta.BestBlock)
	assert.NotEqual(t, rootsAt4, repo.Roots())

	// truncated headers are gone
	_, err = repo.GetHeader(blocks[3].Hash())
	assert.True(t, repo.IsNotFound(err))
	_, err = repo.GetMainChainHash(3)
	assert.True(t, repo.IsNotFound(err))

	// the output spent by block 3 is spendable again
	_, _, err = repo.GetSpendableOutput(mintOutput(11).Commitment)
	assert.NoError(t, err)
	// the output created by block 3 is not
	_, _, err = repo.GetSpendableOutput(mintOutput(12).Commitment)
	assert.True(t, repo.IsNotFound(err))

	ev := <-ch
	assert.Equal(t, BlockSyncRewind, ev.Type)
	require.Len(t, ev.Removed, 2)
	assert.Equal(t, blocks[2].Hash(), ev.Removed[0].Hash())

	// reapplying the removed blocks restores the exact pre-rewind state
	for _, b := range removed {
		result, err := repo.AddBlock(b)
		require.NoError(t, err)
		require.Equal(t, BlockAddOk, result.Status)
	}
	assert.Equal(t, rootsAt4, repo.Roots())
}

func TestRewindValidation(t *testing.T) {
	repo, _ := newTestRepo(t)
	extendChain(t, repo, 3, 10)

	_, err := repo.RewindToHeight(9)
	assert.ErrorIs(t, err, ErrInvalidRewind)

	// rewinding to the tip is a no-op
	removed, err := repo.RewindToHeight(3)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, uint64(3), repo.Metadata().HeightOfLongestChain)
}

func TestPruningHorizonMonotonic(t *testing.T) {
	repo, _ := newTestRepo(t)
	extendChain(t, repo, 5, 10)

	require.NoError(t, repo.SetPruningHorizon(3))
	assert.Equal(t, uint64(3), repo.Metadata().PruningHorizon)

	err := repo.SetPruningHorizon(2)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, uint64(3), repo.Metadata().PruningHorizon)

	err = repo.SetPruningHorizon(99)
	assert.ErrorIs(t, err, ErrInvalidConfig, "horizon above tip")

	// until PruneToHorizon runs, history below the horizon stays reachable
	removed, err := repo.RewindToHeight(2)
	require.NoError(t, err)
	assert.Len(t, removed, 3)
}

func TestPruneToHorizon(t *testing.T) {
	repo, db := newTestRepo(t)
	blocks := extendChain(t, repo, 5, 10)
	roots := repo.Roots()

	require.NoError(t, repo.SetPruningHorizon(3))
	require.NoError(t, repo.PruneToHorizon())

	meta := repo.Metadata()
	assert.Equal(t, uint64(3), meta.PrunedHeight)
	assert.Equal(t, roots, repo.Roots(), "pruning must not change commitments")

	// bodies below the horizon are discarded, headers retained
	_, err := repo.GetBlock(blocks[0].Hash())
	assert.True(t, repo.IsNotFound(err))
	_, err = repo.GetHeader(blocks[0].Hash())
	assert.NoError(t, err)
	_, err = repo.GetBlock(blocks[3].Hash())
	assert.NoError(t, err)

	// history below the horizon is out of reach
	_, err = repo.RewindToHeight(2)
	assert.ErrorIs(t, err, ErrBeyondPruningHorizon)
	removed, err := repo.RewindToHeight(3)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	// the pruned store reopens cleanly
	reopened, err := NewRepository(db, genesisBlock(), Options{})
	require.NoError(t, err)
	assert.Equal(t, repo.Metadata(), reopened.Metadata())
	assert.Equal(t, repo.Roots(), reopened.Roots())

	// and still extends
	extendChain(t, reopened, 2, 50)
	assert.Equal(t, uint64(5), reopened.Metadata().HeightOfLongestChain)
}

func TestReorgBelowPrunedHeightRejected(t *testing.T) {
	repo, _ := newTestRepo(t)
	genesis := repo.GenesisBlock()
	extendChain(t, repo, 5, 10)

	require.NoError(t, repo.SetPruningHorizon(3))
	require.NoError(t, repo.PruneToHorizon())

	// a competing branch forking at genesis can no longer be applied
	b1 := buildBlock(genesis.Header(), 5000, nil, nil)
	_, err := repo.AddBlock(b1)
	assert.ErrorIs(t, err, ErrReorgTooDeep)
}
