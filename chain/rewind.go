// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/kv"
	"github.com/quarrylabs/quarry/mmr"
)

// RewindToHeight rolls committed chain state back so the block at the
// given height becomes the tip, undoing one checkpoint per removed block
// in reverse rank order. It returns the removed blocks, which are also
// delivered to subscribers as a BlockSyncRewind event.
func (r *Repository) RewindToHeight(height uint64) ([]*block.Block, error) {
	removed, events, err := r.rewindToHeight(height)
	for _, ev := range events {
		r.feed.Send(ev)
	}
	return removed, err
}

func (r *Repository) rewindToHeight(height uint64) ([]*block.Block, []BlockEvent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	best := r.bestHeader.Load().(*block.Header)
	meta := r.Metadata()

	if height > best.Height() {
		return nil, nil, errors.Wrapf(ErrInvalidRewind, "height %d above tip %d", height, best.Height())
	}
	if height < meta.PrunedHeight {
		return nil, nil, errors.Wrapf(ErrBeyondPruningHorizon, "height %d below pruned height %d", height, meta.PrunedHeight)
	}
	if height == best.Height() {
		return nil, nil, nil
	}

	newBestHash, err := r.GetMainChainHash(height)
	if err != nil {
		return nil, nil, err
	}
	newBest, err := r.GetHeader(newBestHash)
	if err != nil {
		return nil, nil, err
	}
	var removed []*block.Block
	for h := height + 1; h <= best.Height(); h++ {
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

	if err := r.stageRewind(put, height, removed); err != nil {
		r.restore()
		return nil, nil, err
	}
	newMeta := &Metadata{
		HeightOfLongestChain:  height,
		BestBlock:             newBestHash,
		AccumulatedDifficulty: newBest.TotalWork(),
		PruningHorizon:        meta.PruningHorizon,
		PrunedHeight:          meta.PrunedHeight,
	}
	if err := saveMetadata(put.prop, newMeta); err != nil {
		r.restore()
		return nil, nil, err
	}
	if err := r.writeBatch(batch); err != nil {
		r.restore()
		return nil, nil, err
	}
	r.commitInMemory(newMeta, newBest)
	log.Info("chain rewound", "height", height, "removed", len(removed))

	events := []BlockEvent{{Type: BlockSyncRewind, Removed: removed}}
	return removed, events, nil
}

// SetPruningHorizon raises the height below which history may be pruned.
// The horizon only moves forward; tightening it would pretend discarded
// history is still available.
func (r *Repository) SetPruningHorizon(horizon uint64) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	best := r.bestHeader.Load().(*block.Header)
	meta := r.Metadata()

	if horizon < meta.PruningHorizon {
		return errors.Wrapf(ErrInvalidConfig, "pruning horizon may only move forward: %d < %d", horizon, meta.PruningHorizon)
	}
	if horizon > best.Height() {
		return errors.Wrapf(ErrInvalidConfig, "pruning horizon %d above tip %d", horizon, best.Height())
	}
	if horizon == meta.PruningHorizon {
		return nil
	}

	newMeta := meta
	newMeta.PruningHorizon = horizon
	// a single put, atomic on its own
	if err := saveMetadata(r.propStore, &newMeta); err != nil {
		return err
	}
	r.meta.Store(&newMeta)
	return nil
}

// PruneToHorizon compacts history below the pruning horizon: per-block
// checkpoints merge into one base checkpoint, bodies and spent records
// below the horizon are discarded, headers are retained. Rewind and
// reorg below the horizon become impossible afterwards.
func (r *Repository) PruneToHorizon() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	meta := r.Metadata()
	target := meta.PruningHorizon
	if target <= meta.PrunedHeight {
		return nil
	}

	if err := r.outputs.MergeToRank(target); err != nil {
		r.restore()
		return err
	}
	if err := r.kernels.MergeToRank(target); err != nil {
		r.restore()
		return err
	}
	if err := r.proofs.MergeToRank(target); err != nil {
		r.restore()
		return err
	}

	batch := r.db.NewBatch()
	put := newStagedPutters(batch)

	for _, flush := range []struct {
		tracker *mmr.ChangeTracker
		putter  kv.Putter
	}{
		{r.outputs, put.cpOut},
		{r.kernels, put.cpKrn},
		{r.proofs, put.cpRp},
	} {
		base, err := flush.tracker.Checkpoint(target)
		if err != nil {
			r.restore()
			return err
		}
		if err := saveRLP(flush.putter, rankKey(target), base); err != nil {
			r.restore()
			return err
		}
	}

	for h := meta.PrunedHeight; h < target; h++ {
		for _, cp := range []kv.Putter{put.cpOut, put.cpKrn, put.cpRp} {
			if err := cp.Delete(rankKey(h)); err != nil {
				r.restore()
				return err
			}
		}
		hash, err := r.GetMainChainHash(h)
		if err != nil {
			r.restore()
			return err
		}
		if err := put.body.Delete(hash.Bytes()); err != nil {
			r.restore()
			return err
		}
	}

	// spent records below the horizon can never be needed for a rewind
	iter := r.stxoStore.NewIterator(kv.Range{To: numKey(target)})
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		if err := put.stxo.Delete(key); err != nil {
			iter.Release()
			r.restore()
			return err
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		r.restore()
		return err
	}

	newMeta := meta
	newMeta.PrunedHeight = target
	if err := saveMetadata(put.prop, &newMeta); err != nil {
		r.restore()
		return err
	}
	if err := r.writeBatch(batch); err != nil {
		r.restore()
		return err
	}
	r.meta.Store(&newMeta)
	log.Info("chain state pruned", "height", target)
	return nil
}
