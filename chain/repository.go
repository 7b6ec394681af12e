// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain implements the chain state store: block headers, chain
// metadata, the spendable output set and the three merkle accumulators,
// mutated only through atomic block-add, reorg, rewind and pruning
// transactions.
package chain

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/cache"
	"github.com/quarrylabs/quarry/co"
	"github.com/quarrylabs/quarry/kv"
	"github.com/quarrylabs/quarry/mmr"
	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/smt"
	"github.com/quarrylabs/quarry/tx"
)

var log = log15.New("pkg", "chain")

// Options tunes a repository. The zero value is usable.
type Options struct {
	// OrphanPoolLimit caps the orphan pool; 0 means the default of 720.
	OrphanPoolLimit int
	// TrackReorgs enables the persistent reorg audit log.
	TrackReorgs bool
}

const defaultOrphanPoolLimit = 720

// BlockAddStatus tells the caller how a submitted block was handled.
type BlockAddStatus byte

const (
	// BlockAddOk the block extended the best chain.
	BlockAddOk BlockAddStatus = iota
	// BlockExists the block is already known.
	BlockExists
	// OrphanBlock the block was stored in the orphan pool.
	OrphanBlock
	// ChainReorg the block caused the best chain to switch branches.
	ChainReorg
)

func (s BlockAddStatus) String() string {
	switch s {
	case BlockAddOk:
		return "ok"
	case BlockExists:
		return "exists"
	case OrphanBlock:
		return "orphan"
	case ChainReorg:
		return "reorg"
	default:
		return "unknown"
	}
}

// BlockAddResult is the outcome of AddBlock. Added and Removed are only
// populated for ChainReorg. Callers branch on Status to decide whether
// to announce the block.
type BlockAddResult struct {
	Status  BlockAddStatus
	Added   []*block.Block
	Removed []*block.Block
}

// StateRoots is a consistent snapshot of the accumulator commitments
// after the last committed transaction.
type StateRoots struct {
	OutputRoot     quarry.Bytes32
	KernelRoot     quarry.Bytes32
	RangeProofRoot quarry.Bytes32
	SpendableRoot  quarry.Bytes32
	SpendableCount int
}

// Repository is the single writer of committed chain state. It owns the
// accumulators, the spendable output set, the metadata record and the
// orphan pool; nothing outside mutates them.
//
// Mutations serialize on an internal write lock. Metadata and root
// queries read atomic snapshots and never block behind a reorg.
type Repository struct {
	db kv.Store

	hdrStore   kv.Store
	bodyStore  kv.Store
	propStore  kv.Store
	numStore   kv.Store
	utxoStore  kv.Store
	stxoStore  kv.Store
	reorgStore kv.Store

	genesis *block.Block
	opts    Options

	lock sync.RWMutex

	outputs *mmr.ChangeTracker
	kernels *mmr.ChangeTracker
	proofs  *mmr.ChangeTracker

	spendable *smt.Tree
	utxoSet   map[quarry.Bytes32]*outputRecord

	orphans  *orphanPool
	reorgSeq uint64

	meta       atomic.Value // *Metadata
	bestHeader atomic.Value // *block.Header
	roots      atomic.Value // *StateRoots

	headerCache *cache.LRU

	feed event.Feed
	tick co.Signal
}

// NewRepository opens (or bootstraps) a repository over the given store.
// A stale transaction marker left by a crash is detected here; since all
// durable mutation is a single atomic batch, recovery only needs to drop
// the marker and reload the last committed state.
func NewRepository(db kv.Store, genesis *block.Block, opts Options) (*Repository, error) {
	if genesis == nil || genesis.Height() != 0 || !genesis.Header().PrevHash().IsZero() {
		return nil, errors.Wrap(ErrInvalidGenesis, "genesis must be at height 0 with zero parent")
	}
	if opts.OrphanPoolLimit <= 0 {
		opts.OrphanPoolLimit = defaultOrphanPoolLimit
	}

	outBackend, err := mmr.NewKVBackend(mmrOutputStoreName.NewStore(db))
	if err != nil {
		return nil, err
	}
	krnBackend, err := mmr.NewKVBackend(mmrKernelStoreName.NewStore(db))
	if err != nil {
		return nil, err
	}
	rpBackend, err := mmr.NewKVBackend(mmrProofStoreName.NewStore(db))
	if err != nil {
		return nil, err
	}

	repo := &Repository{
		db:         db,
		hdrStore:   hdrStoreName.NewStore(db),
		bodyStore:  bodyStoreName.NewStore(db),
		propStore:  propStoreName.NewStore(db),
		numStore:   numStoreName.NewStore(db),
		utxoStore:  utxoStoreName.NewStore(db),
		stxoStore:  stxoStoreName.NewStore(db),
		reorgStore: reorgStoreName.NewStore(db),

		genesis: genesis,
		opts:    opts,

		outputs: mmr.NewChangeTracker(outBackend),
		kernels: mmr.NewChangeTracker(krnBackend),
		proofs:  mmr.NewChangeTracker(rpBackend),

		spendable: smt.NewTree(),
		utxoSet:   make(map[quarry.Bytes32]*outputRecord),

		orphans:     newOrphanPool(opts.OrphanPoolLimit),
		headerCache: cache.NewLRU(512),
	}

	if has, err := repo.propStore.Has(inProgressKey); err != nil {
		return nil, err
	} else if has {
		// the interrupted batch never applied; the store is at the last
		// committed transaction
		log.Warn("recovering from interrupted transaction")
		if err := repo.propStore.Delete(inProgressKey); err != nil {
			return nil, err
		}
	}

	if _, err := loadMetadata(repo.propStore); err != nil {
		if !repo.propStore.IsNotFound(err) {
			return nil, err
		}
		if err := repo.bootstrap(); err != nil {
			return nil, err
		}
		return repo, nil
	}

	existing, err := repo.numStore.Get(numKey(0))
	if err != nil {
		return nil, errors.Wrap(ErrCorruptDataStructure, "missing genesis index")
	}
	if quarry.BytesToBytes32(existing) != genesis.Hash() {
		return nil, errors.Wrap(ErrInvalidGenesis, "genesis mismatch")
	}
	if err := repo.reloadState(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *Repository) bootstrap() error {
	batch := r.db.NewBatch()
	put := newStagedPutters(batch)

	if err := r.stageBlock(put, r.genesis); err != nil {
		return err
	}
	meta := &Metadata{
		HeightOfLongestChain:  0,
		BestBlock:             r.genesis.Hash(),
		AccumulatedDifficulty: r.genesis.Header().TotalWork(),
	}
	if err := saveMetadata(put.prop, meta); err != nil {
		return err
	}
	if err := r.writeBatch(batch); err != nil {
		return err
	}
	r.commitInMemory(meta, r.genesis.Header())
	return nil
}

// reloadState rebuilds all in-memory state from the last committed
// durable state. Used at startup and to restore after a failed
// transaction. The accumulator node buckets are derived state and are
// rewritten by checkpoint replay, which also heals them after a crash.
func (r *Repository) reloadState() error {
	for _, pair := range []struct {
		tracker *mmr.ChangeTracker
		bucket  kv.Bucket
	}{
		{r.outputs, cpOutputStoreName},
		{r.kernels, cpKernelStoreName},
		{r.proofs, cpProofStoreName},
	} {
		cps, err := loadCheckpoints(pair.bucket.NewStore(r.db))
		if err != nil {
			return err
		}
		if err := pair.tracker.Load(cps); err != nil {
			return err
		}
	}

	r.spendable = smt.NewTree()
	r.utxoSet = make(map[quarry.Bytes32]*outputRecord)
	iter := r.utxoStore.NewIterator(kv.Range{})
	for iter.Next() {
		var rec outputRecord
		if err := rlp.DecodeBytes(iter.Value(), &rec); err != nil {
			iter.Release()
			return errors.Wrap(ErrCorruptDataStructure, "decode spendable output")
		}
		commitment := quarry.BytesToBytes32(iter.Key())
		if err := r.spendable.Upsert(commitment.Bytes(), rec.Output.Hash()); err != nil {
			iter.Release()
			return err
		}
		r.utxoSet[commitment] = &rec
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}

	r.reorgSeq = 0
	riter := r.reorgStore.NewIterator(kv.Range{})
	for riter.Next() {
		r.reorgSeq++
	}
	riter.Release()
	if err := riter.Error(); err != nil {
		return err
	}

	meta, err := loadMetadata(r.propStore)
	if err != nil {
		return err
	}
	best, err := loadHeader(r.hdrStore, meta.BestBlock)
	if err != nil {
		return errors.Wrap(err, "load best header")
	}
	r.commitInMemory(meta, best)
	return nil
}

func loadCheckpoints(store kv.Store) ([]*mmr.CheckPoint, error) {
	iter := store.NewIterator(kv.Range{})
	defer iter.Release()

	var cps []*mmr.CheckPoint
	for iter.Next() {
		var cp mmr.CheckPoint
		if err := rlp.DecodeBytes(iter.Value(), &cp); err != nil {
			return nil, errors.Wrap(ErrCorruptDataStructure, "decode checkpoint")
		}
		cps = append(cps, &cp)
	}
	return cps, iter.Error()
}

// GenesisBlock returns the genesis block.
func (r *Repository) GenesisBlock() *block.Block {
	return r.genesis
}

// Metadata returns a snapshot of the chain metadata.
func (r *Repository) Metadata() Metadata {
	return *r.meta.Load().(*Metadata)
}

// BestHeader returns the header of the best chain's tip.
func (r *Repository) BestHeader() *block.Header {
	return r.bestHeader.Load().(*block.Header)
}

// Roots returns a snapshot of the accumulator commitments.
func (r *Repository) Roots() StateRoots {
	return *r.roots.Load().(*StateRoots)
}

// GetHeader returns the main chain header with the given hash.
func (r *Repository) GetHeader(hash quarry.Bytes32) (*block.Header, error) {
	cached, err := r.headerCache.GetOrLoad(hash, func(interface{}) (interface{}, error) {
		header, err := loadHeader(r.hdrStore, hash)
		if err != nil {
			if r.hdrStore.IsNotFound(err) {
				return nil, errors.Wrapf(ErrNotFound, "header %v", hash)
			}
			return nil, err
		}
		return header, nil
	})
	if err != nil {
		return nil, err
	}
	return cached.(*block.Header), nil
}

// GetBlock returns the main chain block with the given hash. The body
// must not have been pruned.
func (r *Repository) GetBlock(hash quarry.Bytes32) (*block.Block, error) {
	header, err := r.GetHeader(hash)
	if err != nil {
		return nil, err
	}
	body, err := loadBody(r.bodyStore, hash)
	if err != nil {
		if r.bodyStore.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "body %v", hash)
		}
		return nil, err
	}
	return block.New(header, body), nil
}

// GetMainChainHash returns the hash of the main chain block at the given
// height.
func (r *Repository) GetMainChainHash(height uint64) (quarry.Bytes32, error) {
	data, err := r.numStore.Get(numKey(height))
	if err != nil {
		if r.numStore.IsNotFound(err) {
			return quarry.Bytes32{}, errors.Wrapf(ErrNotFound, "no main chain block at height %d", height)
		}
		return quarry.Bytes32{}, err
	}
	return quarry.BytesToBytes32(data), nil
}

// GetSpendableOutput returns the unspent output with the given
// commitment, along with its leaf index in the output accumulator.
func (r *Repository) GetSpendableOutput(commitment quarry.Bytes32) (*tx.TransactionOutput, uint64, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rec, ok := r.utxoSet[commitment]
	if !ok {
		return nil, 0, errors.Wrapf(ErrNotFound, "spendable output %v", commitment)
	}
	out := rec.Output
	return &out, rec.LeafIndex, nil
}

// ProveOutput builds an inclusion proof for the output accumulator leaf.
func (r *Repository) ProveOutput(leafIndex uint64) (*mmr.Proof, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.outputs.GenerateProof(int(leafIndex))
}

// ProveKernel builds an inclusion proof for the kernel accumulator leaf.
func (r *Repository) ProveKernel(leafIndex uint64) (*mmr.Proof, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.kernels.GenerateProof(int(leafIndex))
}

// FetchAllReorgs returns the reorg audit log, oldest first.
func (r *Repository) FetchAllReorgs() ([]*ReorgRecord, error) {
	iter := r.reorgStore.NewIterator(kv.Range{})
	defer iter.Release()

	var records []*ReorgRecord
	for iter.Next() {
		var rec ReorgRecord
		if err := rlp.DecodeBytes(iter.Value(), &rec); err != nil {
			return nil, errors.Wrap(ErrCorruptDataStructure, "decode reorg record")
		}
		records = append(records, &rec)
	}
	return records, iter.Error()
}

// SubscribeBlockEvent subscribes to committed chain changes.
func (r *Repository) SubscribeBlockEvent(ch chan BlockEvent) event.Subscription {
	return r.feed.Subscribe(ch)
}

// NewTicker creates a waiter signalled on each best chain change.
func (r *Repository) NewTicker() co.Waiter {
	return r.tick.NewWaiter()
}

// IsNotFound reports whether the error means a missing block or record.
func (r *Repository) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || r.db.IsNotFound(err)
}
