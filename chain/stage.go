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

// stagedPutters routes every durable write of a transaction into one
// batch, so the whole transaction commits in a single atomic write.
type stagedPutters struct {
	hdr   kv.Putter
	body  kv.Putter
	prop  kv.Putter
	num   kv.Putter
	utxo  kv.Putter
	stxo  kv.Putter
	reorg kv.Putter
	cpOut kv.Putter
	cpKrn kv.Putter
	cpRp  kv.Putter
}

func newStagedPutters(batch kv.Batch) *stagedPutters {
	return &stagedPutters{
		hdr:   hdrStoreName.NewPutter(batch),
		body:  bodyStoreName.NewPutter(batch),
		prop:  propStoreName.NewPutter(batch),
		num:   numStoreName.NewPutter(batch),
		utxo:  utxoStoreName.NewPutter(batch),
		stxo:  stxoStoreName.NewPutter(batch),
		reorg: reorgStoreName.NewPutter(batch),
		cpOut: cpOutputStoreName.NewPutter(batch),
		cpKrn: cpKernelStoreName.NewPutter(batch),
		cpRp:  cpProofStoreName.NewPutter(batch),
	}
}

// stageBlock applies one block's ledger changes to the in-memory
// accumulators and stages the durable writes. The block must extend the
// current in-memory state; callers restore via reloadState on error.
//
// Each accumulator commits exactly one checkpoint per block, so
// checkpoint rank equals block height.
func (r *Repository) stageBlock(put *stagedPutters, b *block.Block) error {
	var (
		height = b.Height()
		hash   = b.Hash()
		body   = b.Body()
	)

	for _, in := range body.Inputs {
		commitment := in.Commitment()
		rec, ok := r.utxoSet[commitment]
		if !ok {
			return errors.Wrapf(ErrOutputNotSpendable, "commitment %v", commitment)
		}
		if _, err := r.outputs.MarkDeleted(int(rec.LeafIndex)); err != nil {
			return err
		}
		if err := r.spendable.Delete(commitment.Bytes()); err != nil {
			return err
		}
		delete(r.utxoSet, commitment)
		if err := put.utxo.Delete(commitment.Bytes()); err != nil {
			return err
		}
		if err := saveRLP(put.stxo, stxoKey(height, commitment), rec); err != nil {
			return err
		}
	}

	for _, out := range body.Outputs {
		leafIndex, err := r.outputs.Append(out.Hash())
		if err != nil {
			return err
		}
		if _, err := r.proofs.Append(out.RangeProofHash); err != nil {
			return err
		}
		rec := &outputRecord{LeafIndex: uint64(leafIndex), Output: *out}
		if err := r.spendable.Upsert(out.SmtKey(), out.Hash()); err != nil {
			return err
		}
		r.utxoSet[out.Commitment] = rec
		if err := saveRLP(put.utxo, out.SmtKey(), rec); err != nil {
			return err
		}
	}

	for _, k := range body.Kernels {
		if _, err := r.kernels.Append(k.Hash()); err != nil {
			return err
		}
	}

	for _, flush := range []struct {
		tracker *mmr.ChangeTracker
		putter  kv.Putter
	}{
		{r.outputs, put.cpOut},
		{r.kernels, put.cpKrn},
		{r.proofs, put.cpRp},
	} {
		cp, err := flush.tracker.Commit()
		if err != nil {
			return err
		}
		if cp.Rank() != height {
			return errors.Wrapf(ErrCorruptDataStructure, "checkpoint rank %d at height %d", cp.Rank(), height)
		}
		if err := saveRLP(flush.putter, rankKey(height), cp); err != nil {
			return err
		}
	}

	if err := saveHeader(put.hdr, b.Header()); err != nil {
		return err
	}
	if err := saveBody(put.body, hash, body); err != nil {
		return err
	}
	return put.num.Put(numKey(height), hash.Bytes())
}

// stageRewind rolls the in-memory state back to targetHeight and stages
// the durable deletes. removed must be the main chain blocks above the
// target, ascending by height.
func (r *Repository) stageRewind(put *stagedPutters, targetHeight uint64, removed []*block.Block) error {
	if err := r.outputs.RewindToRank(targetHeight); err != nil {
		return err
	}
	if err := r.kernels.RewindToRank(targetHeight); err != nil {
		return err
	}
	if err := r.proofs.RewindToRank(targetHeight); err != nil {
		return err
	}

	// removed blocks in reverse, undoing each in turn
	for i := len(removed) - 1; i >= 0; i-- {
		b := removed[i]
		height := b.Height()

		for _, out := range b.Body().Outputs {
			commitment := out.Commitment
			if _, ok := r.utxoSet[commitment]; !ok {
				// created and spent above the target; its spent record
				// is dropped below
				continue
			}
			if err := r.spendable.Delete(commitment.Bytes()); err != nil {
				return err
			}
			delete(r.utxoSet, commitment)
			if err := put.utxo.Delete(commitment.Bytes()); err != nil {
				return err
			}
		}

		for _, in := range b.Body().Inputs {
			commitment := in.Commitment()
			var rec outputRecord
			if err := loadRLP(r.stxoStore, stxoKey(height, commitment), &rec); err != nil {
				return errors.Wrapf(ErrCorruptDataStructure, "missing spent record for %v at height %d", commitment, height)
			}
			if err := r.spendable.Upsert(commitment.Bytes(), rec.Output.Hash()); err != nil {
				return err
			}
			r.utxoSet[commitment] = &rec
			if err := saveRLP(put.utxo, commitment.Bytes(), &rec); err != nil {
				return err
			}
			if err := put.stxo.Delete(stxoKey(height, commitment)); err != nil {
				return err
			}
		}

		hash := b.Hash()
		if err := put.hdr.Delete(hash.Bytes()); err != nil {
			return err
		}
		if err := put.body.Delete(hash.Bytes()); err != nil {
			return err
		}
		if err := put.num.Delete(numKey(height)); err != nil {
			return err
		}
		for _, cp := range []kv.Putter{put.cpOut, put.cpKrn, put.cpRp} {
			if err := cp.Delete(rankKey(height)); err != nil {
				return err
			}
		}
		r.headerCache.Remove(hash)
	}
	return nil
}

// writeBatch commits the staged transaction. The in-progress marker goes
// down first as its own durable write; its removal rides inside the
// batch, so marker clearing and the commit are one atomic write.
func (r *Repository) writeBatch(batch kv.Batch) error {
	if err := r.propStore.Put(inProgressKey, []byte{1}); err != nil {
		return err
	}
	if err := propStoreName.NewPutter(batch).Delete(inProgressKey); err != nil {
		return err
	}
	return batch.Write()
}

// commitInMemory publishes the post-transaction snapshots. Caller holds
// the write lock (or is still constructing the repository).
func (r *Repository) commitInMemory(meta *Metadata, best *block.Header) {
	r.meta.Store(meta)
	r.bestHeader.Store(best)
	r.updateRoots()
	r.tick.Broadcast()
	metricBestHeight().Set(int64(meta.HeightOfLongestChain))
}

func (r *Repository) updateRoots() {
	outputRoot, err := r.outputs.Root()
	if err != nil {
		log.Error("output root", "err", err)
	}
	kernelRoot, err := r.kernels.Root()
	if err != nil {
		log.Error("kernel root", "err", err)
	}
	proofRoot, err := r.proofs.Root()
	if err != nil {
		log.Error("range proof root", "err", err)
	}
	spendableRoot, err := r.spendable.Hash()
	if err != nil {
		log.Error("spendable root", "err", err)
	}
	r.roots.Store(&StateRoots{
		OutputRoot:     outputRoot,
		KernelRoot:     kernelRoot,
		RangeProofRoot: proofRoot,
		SpendableRoot:  spendableRoot,
		SpendableCount: r.spendable.Size(),
	})
}
