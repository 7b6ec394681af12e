// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	"encoding/binary"

	"github.com/quarrylabs/quarry/kv"
	"github.com/quarrylabs/quarry/quarry"
)

// Backend is the ordered append-only array the accumulator is built on.
// It stores node hashes, leaves and parents alike, addressed by position.
// Any array-like storage can implement it; the MMR is written against this
// interface only. Clear exists to support checkpoint rewind, which rebuilds
// the array by replay.
type Backend interface {
	Len() int
	Push(h quarry.Bytes32) (pos int, err error)
	Get(pos int) (quarry.Bytes32, bool)
	Clear() error
}

// MemBackend keeps all node hashes in memory.
type MemBackend struct {
	hashes []quarry.Bytes32
}

var _ Backend = (*MemBackend)(nil)

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

func (b *MemBackend) Len() int {
	return len(b.hashes)
}

func (b *MemBackend) Push(h quarry.Bytes32) (int, error) {
	b.hashes = append(b.hashes, h)
	return len(b.hashes) - 1, nil
}

func (b *MemBackend) Get(pos int) (quarry.Bytes32, bool) {
	if pos < 0 || pos >= len(b.hashes) {
		return quarry.Bytes32{}, false
	}
	return b.hashes[pos], true
}

func (b *MemBackend) Clear() error {
	b.hashes = b.hashes[:0]
	return nil
}

var kvLenKey = []byte("len")

// KVBackend persists node hashes into a kv store, write-through over an
// in-memory mirror. The mirror makes Get infallible; the kv copy makes the
// array survive restarts.
type KVBackend struct {
	store  kv.Store
	hashes []quarry.Bytes32
}

var _ Backend = (*KVBackend)(nil)

// NewKVBackend opens a kv-backed array, loading any previously stored nodes.
func NewKVBackend(store kv.Store) (*KVBackend, error) {
	b := &KVBackend{store: store}

	data, err := store.Get(kvLenKey)
	if err != nil {
		if store.IsNotFound(err) {
			return b, nil
		}
		return nil, err
	}
	n := binary.BigEndian.Uint64(data)
	b.hashes = make([]quarry.Bytes32, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := store.Get(kvPosKey(int(i)))
		if err != nil {
			return nil, err
		}
		b.hashes = append(b.hashes, quarry.BytesToBytes32(v))
	}
	return b, nil
}

func kvPosKey(pos int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(pos))
	return k[:]
}

func (b *KVBackend) Len() int {
	return len(b.hashes)
}

func (b *KVBackend) Push(h quarry.Bytes32) (int, error) {
	pos := len(b.hashes)
	batch := b.store.NewBatch()
	batch.Put(kvPosKey(pos), h.Bytes())

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(pos+1))
	batch.Put(kvLenKey, lenBuf[:])

	if err := batch.Write(); err != nil {
		return 0, err
	}
	b.hashes = append(b.hashes, h)
	return pos, nil
}

func (b *KVBackend) Get(pos int) (quarry.Bytes32, bool) {
	if pos < 0 || pos >= len(b.hashes) {
		return quarry.Bytes32{}, false
	}
	return b.hashes[pos], true
}

func (b *KVBackend) Clear() error {
	batch := b.store.NewBatch()
	for i := range b.hashes {
		batch.Delete(kvPosKey(i))
	}
	batch.Delete(kvLenKey)
	if err := batch.Write(); err != nil {
		return err
	}
	b.hashes = b.hashes[:0]
	return nil
}
