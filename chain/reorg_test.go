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

func TestReorg(t *testing.T) {
	repo, _ := newTestRepo(t)
	genesis := repo.GenesisBlock()

	// main chain: g -> a1 -> a2, spending the genesis output in a1
	genesisOut := mintOutput(0)
	a1 := buildBlock(genesis.Header(), 100, []*tx.TransactionOutput{mintOutput(1)}, []*tx.TransactionInput{spend(genesisOut)})
	a2 := buildBlock(a1.Header(), 200, []*tx.TransactionOutput{mintOutput(2)}, nil)
	_, err := repo.AddBlock(a1)
	require.NoError(t, err)
	_, err = repo.AddBlock(a2)
	require.NoError(t, err)

	// competing branch: g -> b1 -> b2 with more accumulated work
	b1 := buildBlock(genesis.Header(), 150, []*tx.TransactionOutput{mintOutput(11)}, nil)
	b2 := buildBlock(b1.Header(), 300, []*tx.TransactionOutput{mintOutput(12)}, []*tx.TransactionInput{spend(genesisOut)})

	result, err := repo.AddBlock(b1)
	require.NoError(t, err)
	assert.Equal(t, OrphanBlock, result.Status, "not yet competitive")

	result, err = repo.AddBlock(b2)
	require.NoError(t, err)
	require.Equal(t, ChainReorg, result.Status)
	require.Len(t, result.Added, 2)
	require.Len(t, result.Removed, 2)
	assert.Equal(t, b1.Hash(), result.Added[0].Hash())
	assert.Equal(t, b2.Hash(), result.Added[1].Hash())
	assert.Equal(t, a1.Hash(), result.Removed[0].Hash())
	assert.Equal(t, a2.Hash(), result.Removed[1].Hash())

	meta := repo.Metadata()
	assert.Equal(t, uint64(2), meta.HeightOfLongestChain)
	assert.Equal(t, b2.Hash(), meta.BestBlock)
	assert.Equal(t, uint64(300), meta.AccumulatedDifficulty)

	// the spendable set now reflects the new branch
	_, _, err = repo.GetSpendableOutput(mintOutput(1).Commitment)
	assert.True(t, repo.IsNotFound(err))
	_, _, err = repo.GetSpendableOutput(mintOutput(11).Commitment)
	assert.NoError(t, err)
	_, _, err = repo.GetSpendableOutput(genesisOut.Commitment)
	assert.True(t, repo.IsNotFound(err), "spent on the new branch")

	// the main chain index follows the new branch
	hash, err := repo.GetMainChainHash(1)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), hash)

	// removed blocks return to the orphan pool
	_, ok := repo.orphans.Get(a1.Hash())
	assert.True(t, ok)

	records, err := repo.FetchAllReorgs()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(2), records[0].NewHeight)
	assert.Equal(t, b2.Hash(), records[0].NewHash)
	assert.Equal(t, uint64(2), records[0].PrevHeight)
	assert.Equal(t, a2.Hash(), records[0].PrevHash)
	assert.Equal(t, uint64(2), records[0].NumBlocksAdded)
	assert.Equal(t, uint64(2), records[0].NumBlocksRemoved)
}

// A pooled descendant of the new tip is absorbed as part of the reorg,
// just as on the extend path.
func TestReorgConnectsOrphans(t *testing.T) {
	repo, _ := newTestRepo(t)
	genesis := repo.GenesisBlock()

	a1 := buildBlock(genesis.Header(), 100, []*tx.TransactionOutput{mintOutput(1)}, nil)
	a2 := buildBlock(a1.Header(), 200, []*tx.TransactionOutput{mintOutput(2)}, nil)
	_, err := repo.AddBlock(a1)
	require.NoError(t, err)
	_, err = repo.AddBlock(a2)
	require.NoError(t, err)

	b1 := buildBlock(genesis.Header(), 150, []*tx.TransactionOutput{mintOutput(11)}, nil)
	b2 := buildBlock(b1.Header(), 300, []*tx.TransactionOutput{mintOutput(12)}, nil)
	b3 := buildBlock(b2.Header(), 400, []*tx.TransactionOutput{mintOutput(13)}, nil)

	ch := make(chan BlockEvent, 10)
	sub := repo.SubscribeBlockEvent(ch)
	defer sub.Unsubscribe()

	// b3 is competitive but disconnected, b1 is not competitive
	for _, b := range []*block.Block{b3, b1} {
		result, err := repo.AddBlock(b)
		require.NoError(t, err)
		require.Equal(t, OrphanBlock, result.Status)
	}

	// b2 completes the branch; the reorg lands b1..b2 and then pulls
	// the pooled b3 on top
	result, err := repo.AddBlock(b2)
	require.NoError(t, err)
	require.Equal(t, ChainReorg, result.Status)

	meta := repo.Metadata()
	assert.Equal(t, uint64(3), meta.HeightOfLongestChain)
	assert.Equal(t, b3.Hash(), meta.BestBlock)
	assert.Equal(t, uint64(400), meta.AccumulatedDifficulty)
	_, ok := repo.orphans.Get(b3.Hash())
	assert.False(t, ok)

	ev := <-ch
	assert.Equal(t, ChainReorged, ev.Type)
	ev = <-ch
	assert.Equal(t, BlockAdded, ev.Type)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, b3.Hash(), ev.Added[0].Hash())
}

// Applying a branch via reorg yields state identical to applying the
// same blocks directly as the main chain.
func TestReorgEquivalence(t *testing.T) {
	viaReorg, _ := newTestRepo(t)
	direct, _ := newTestRepo(t)
	genesis := viaReorg.GenesisBlock()

	genesisOut := mintOutput(0)
	a1 := buildBlock(genesis.Header(), 100, []*tx.TransactionOutput{mintOutput(1)}, nil)
	b1 := buildBlock(genesis.Header(), 150, []*tx.TransactionOutput{mintOutput(11)}, []*tx.TransactionInput{spend(genesisOut)})
	b2 := buildBlock(b1.Header(), 300, []*tx.TransactionOutput{mintOutput(12)}, nil)

	_, err := viaReorg.AddBlock(a1)
	require.NoError(t, err)
	_, err = viaReorg.AddBlock(b1)
	require.NoError(t, err)
	result, err := viaReorg.AddBlock(b2)
	require.NoError(t, err)
	require.Equal(t, ChainReorg, result.Status)

	_, err = direct.AddBlock(b1)
	require.NoError(t, err)
	_, err = direct.AddBlock(b2)
	require.NoError(t, err)

	assert.Equal(t, direct.Roots(), viaReorg.Roots())
	assert.Equal(t, direct.Metadata().BestBlock, viaReorg.Metadata().BestBlock)
	assert.Equal(t, direct.Metadata().AccumulatedDifficulty, viaReorg.Metadata().AccumulatedDifficulty)
}

func TestReorgEvents(t *testing.T) {
	repo, _ := newTestRepo(t)
	genesis := repo.GenesisBlock()

	ch := make(chan BlockEvent, 10)
	sub := repo.SubscribeBlockEvent(ch)
	defer sub.Unsubscribe()

	a1 := buildBlock(genesis.Header(), 100, nil, nil)
	_, err := repo.AddBlock(a1)
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, BlockAdded, ev.Type)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, a1.Hash(), ev.Added[0].Hash())

	b1 := buildBlock(genesis.Header(), 250, nil, nil)
	result, err := repo.AddBlock(b1)
	require.NoError(t, err)
	require.Equal(t, ChainReorg, result.Status)

	ev = <-ch
	assert.Equal(t, ChainReorged, ev.Type)
	require.Len(t, ev.Added, 1)
	require.Len(t, ev.Removed, 1)
	assert.Equal(t, b1.Hash(), ev.Added[0].Hash())
	assert.Equal(t, a1.Hash(), ev.Removed[0].Hash())
}
