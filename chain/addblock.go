// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/block"
)

// AddBlock feeds one externally validated block into the store.
//
// A block extending the best chain is committed atomically. A block on a
// competing branch triggers a reorg when its accumulated work beats the
// current chain, and is pooled as an orphan otherwise. The result tells
// the caller what happened; on error the committed state is unchanged.
func (r *Repository) AddBlock(newBlock *block.Block) (*BlockAddResult, error) {
	result, events, err := r.addBlock(newBlock)
	for _, ev := range events {
		r.feed.Send(ev)
	}
	return result, err
}

func (r *Repository) addBlock(newBlock *block.Block) (*BlockAddResult, []BlockEvent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var (
		header = newBlock.Header()
		hash   = newBlock.Hash()
	)

	if has, err := r.hdrStore.Has(hash.Bytes()); err != nil {
		return nil, nil, err
	} else if has {
		return &BlockAddResult{Status: BlockExists}, nil, nil
	}
	if _, ok := r.orphans.Get(hash); ok {
		return &BlockAddResult{Status: BlockExists}, nil, nil
	}

	best := r.bestHeader.Load().(*block.Header)
	meta := r.Metadata()

	if header.PrevHash() == best.Hash() {
		if header.Height() != best.Height()+1 {
			return nil, nil, errors.Wrapf(ErrInvalidBlock, "height %d on parent height %d", header.Height(), best.Height())
		}
		if err := r.extend(newBlock, &meta); err != nil {
			return nil, nil, err
		}
		metricBlocksAdded().Add(1)
		events := []BlockEvent{{Type: BlockAdded, Added: []*block.Block{newBlock}}}
		r.connectOrphans(&events)
		return &BlockAddResult{Status: BlockAddOk}, events, nil
	}

	if header.TotalWork() > meta.AccumulatedDifficulty {
		return r.reorg(newBlock, &meta)
	}

	r.orphans.Add(newBlock)
	metricBlocksOrphan().Add(1)
	metricOrphanPoolLen().Set(int64(r.orphans.Len()))
	return &BlockAddResult{Status: OrphanBlock}, nil, nil
}

// extend commits one block on top of the current tip. Caller holds the
// write lock.
func (r *Repository) extend(b *block.Block, meta *Metadata) error {
	batch := r.db.NewBatch()
	put := newStagedPutters(batch)

	if err := r.stageBlock(put, b); err != nil {
		r.restore()
		return err
	}
	newMeta := &Metadata{
		HeightOfLongestChain:  b.Height(),
		BestBlock:             b.Hash(),
		AccumulatedDifficulty: b.Header().TotalWork(),
		PruningHorizon:        meta.PruningHorizon,
		PrunedHeight:          meta.PrunedHeight,
	}
	if err := saveMetadata(put.prop, newMeta); err != nil {
		r.restore()
		return err
	}
	if err := r.writeBatch(batch); err != nil {
		r.restore()
		return err
	}
	r.commitInMemory(newMeta, b.Header())
	return nil
}

// connectOrphans absorbs pooled orphans that now extend the tip. Caller
// holds the write lock.
func (r *Repository) connectOrphans(events *[]BlockEvent) {
	for {
		best := r.bestHeader.Load().(*block.Header)
		child, ok := r.orphans.ChildOf(best.Hash())
		if !ok {
			break
		}
		r.orphans.Remove(child.Hash())
		if child.Height() != best.Height()+1 {
			log.Warn("dropping misheighted orphan", "hash", child.Hash(), "height", child.Height())
			continue
		}
		meta := r.Metadata()
		if err := r.extend(child, &meta); err != nil {
			log.Warn("dropping unappliable orphan", "hash", child.Hash(), "err", err)
			continue
		}
		metricBlocksAdded().Add(1)
		*events = append(*events, BlockEvent{Type: BlockAdded, Added: []*block.Block{child}})
	}
	metricOrphanPoolLen().Set(int64(r.orphans.Len()))
}

// restore rebuilds in-memory state from the last committed durable
// state after a failed transaction.
func (r *Repository) restore() {
	if err := r.reloadState(); err != nil {
		log.Crit("failed to restore committed state", "err", err)
	}
}
