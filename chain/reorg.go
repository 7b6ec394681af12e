// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"time"

	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/quarry"
)

// ReorgRecord is an immutable audit log entry, appended whenever the
// best chain tip moves via reorg rather than simple extension.
type ReorgRecord struct {
	NewHeight        uint64
	NewHash          quarry.Bytes32
	PrevHeight       uint64
	PrevHash         quarry.Bytes32
	NumBlocksAdded   uint64
	NumBlocksRemoved uint64
	LocalTime        uint64
}

// assembleBranch walks the competing block's ancestry back through the
// orphan pool until it meets the main chain. It returns the branch in
// ascending height order and the main chain header at the fork point;
// complete is false when an ancestor is unknown.
func (r *Repository) assembleBranch(newBlock *block.Block) (branch []*block.Block, fork *block.Header, complete bool, err error) {
	branch = []*block.Block{newBlock}
	cur := newBlock.Header().PrevHash()

	for {
		if cur.IsZero() {
			return nil, nil, false, errors.Wrap(ErrInvalidBlock, "competing branch descends below genesis")
		}
		// main chain headers are exactly the stored ones
		if has, err := r.hdrStore.Has(cur.Bytes()); err != nil {
			return nil, nil, false, err
		} else if has {
			fork, err := r.GetHeader(cur)
			if err != nil {
				return nil, nil, false, err
			}
			return branch, fork, true, nil
		}
		orphan, ok := r.orphans.Get(cur)
		if !ok {
			return branch, nil, false, nil
		}
		branch = append([]*block.Block{orphan}, branch...)
		cur = orphan.Header().PrevHash()
	}
}

// reorg switches the best chain to the branch ending at newBlock. The
// rewind to the fork point and the forward application of every branch
// block are staged into one batch; either the whole new history commits
// or the old chain stays in place. Caller holds the write lock.
func (r *Repository) reorg(newBlock *block.Block, meta *Metadata) (*BlockAddResult, []BlockEvent, error) {
	branch, fork, complete, err := r.assembleBranch(newBlock)
	if err != nil {
		return nil, nil, err
	}
	if !complete {
		// competitive but disconnected; pool it and wait for ancestors
		r.orphans.Add(newBlock)
		metricBlocksOrphan().Add(1)
		metricOrphanPoolLen().Set(int64(r.orphans.Len()))
		return &BlockAddResult{Status: OrphanBlock}, nil, nil
	}

	if fork.Height() < meta.PrunedHeight {
		return nil, nil, errors.Wrapf(ErrReorgTooDeep, "fork at height %d below pruned height %d", fork.Height(), meta.PrunedHeight)
	}
	height := fork.Height()
	for _, b := range branch {
		height++
		if b.Height() != height {
			return nil, nil, errors.Wrapf(ErrInvalidBlock, "branch height %d, want %d", b.Height(), height)
		}
	}

	best := r.bestHeader.Load().(*block.Header)
	var removed []*block.Block
	for h := fork.Height() + 1; h <= best.Height(); h++ {
		hash, err := r.GetMainChainHash(h)
		if err != nil {
			return nil, nil, err
		}
		b, err := r.GetBlock(hash)
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, b)
	}

	batch := r.db.NewBatch()
	put := newStagedPutters(batch)

	if err := r.stageRewind(put, fork.Height(), removed); err != nil {
		r.restore()
		return nil, nil, err
	}
	for _, b := range branch {
		if err := r.stageBlock(put, b); err != nil {
			r.restore()
			return nil, nil, err
		}
	}

	tip := branch[len(branch)-1].Header()
	newMeta := &Metadata{
		HeightOfLongestChain:  tip.Height(),
		BestBlock:             tip.Hash(),
		AccumulatedDifficulty: tip.TotalWork(),
		PruningHorizon:        meta.PruningHorizon,
		PrunedHeight:          meta.PrunedHeight,
	}
	if err := saveMetadata(put.prop, newMeta); err != nil {
		r.restore()
		return nil, nil, err
	}
	if r.opts.TrackReorgs {
		record := &ReorgRecord{
			NewHeight:        tip.Height(),
			NewHash:          tip.Hash(),
			PrevHeight:       best.Height(),
			PrevHash:         best.Hash(),
			NumBlocksAdded:   uint64(len(branch)),
			NumBlocksRemoved: uint64(len(removed)),
			LocalTime:        uint64(time.Now().Unix()),
		}
		if err := saveRLP(put.reorg, numKey(r.reorgSeq), record); err != nil {
			r.restore()
			return nil, nil, err
		}
	}
	if err := r.writeBatch(batch); err != nil {
		r.restore()
		return nil, nil, err
	}
	if r.opts.TrackReorgs {
		r.reorgSeq++
	}
	r.commitInMemory(newMeta, tip)

	for _, b := range branch {
		r.orphans.Remove(b.Hash())
	}
	for _, b := range removed {
		r.orphans.Add(b)
	}
	metricReorgCount().Add(1)
	metricReorgDepth().Observe(int64(len(removed)))
	metricOrphanPoolLen().Set(int64(r.orphans.Len()))
	log.Info("chain reorg",
		"fork", fork.Height(),
		"added", len(branch),
		"removed", len(removed),
		"tip", tip.Hash())

	events := []BlockEvent{{Type: ChainReorged, Added: branch, Removed: removed}}
	// pooled descendants of the new tip extend it right away
	r.connectOrphans(&events)
	return &BlockAddResult{Status: ChainReorg, Added: branch, Removed: removed}, events, nil
}
