// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"sync"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/quarry"
)

// orphanPool holds blocks whose parent is not part of the committed
// chain. Bounded; when full the lowest-work entry is evicted, oldest
// first on ties. It has its own lock so eviction never contends with the
// main write lock.
type orphanPool struct {
	lock    sync.Mutex
	limit   int
	seq     uint64
	entries map[quarry.Bytes32]*orphanEntry
}

type orphanEntry struct {
	block *block.Block
	seq   uint64
}

func newOrphanPool(limit int) *orphanPool {
	return &orphanPool{
		limit:   limit,
		entries: make(map[quarry.Bytes32]*orphanEntry),
	}
}

// Add inserts the block, evicting if the pool is full. Re-adding a known
// hash is a no-op.
func (p *orphanPool) Add(b *block.Block) {
	p.lock.Lock()
	defer p.lock.Unlock()

	hash := b.Hash()
	if _, ok := p.entries[hash]; ok {
		return
	}
	if len(p.entries) >= p.limit {
		p.evict()
	}
	p.seq++
	p.entries[hash] = &orphanEntry{block: b, seq: p.seq}
}

// Get returns the orphan with the given hash, if present.
func (p *orphanPool) Get(hash quarry.Bytes32) (*block.Block, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	entry, ok := p.entries[hash]
	if !ok {
		return nil, false
	}
	return entry.block, true
}

// Remove drops the orphan with the given hash.
func (p *orphanPool) Remove(hash quarry.Bytes32) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.entries, hash)
}

// ChildOf returns an orphan whose parent is the given hash, if any.
func (p *orphanPool) ChildOf(parent quarry.Bytes32) (*block.Block, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for _, entry := range p.entries {
		if entry.block.Header().PrevHash() == parent {
			return entry.block, true
		}
	}
	return nil, false
}

// Len returns the number of pooled orphans.
func (p *orphanPool) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.entries)
}

// evict removes the weakest entry. Caller holds the lock.
func (p *orphanPool) evict() {
	var victim quarry.Bytes32
	var found *orphanEntry
	for hash, entry := range p.entries {
		if found == nil ||
			entry.block.Header().TotalWork() < found.block.Header().TotalWork() ||
			(entry.block.Header().TotalWork() == found.block.Header().TotalWork() && entry.seq < found.seq) {
			victim, found = hash, entry
		}
	}
	if found != nil {
		log.Debug("evicting orphan", "hash", victim, "height", found.block.Height())
		delete(p.entries, victim)
	}
}
