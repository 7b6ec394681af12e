// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/quarrylabs/quarry/block"
	"github.com/quarrylabs/quarry/kv"
	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/tx"
)

// Logical buckets over the backing kv store. All durable chain state
// lives under one of these prefixes so a whole-store batch stays atomic.
const (
	hdrStoreName   = kv.Bucket("chain.hdr")   // block hash -> header
	bodyStoreName  = kv.Bucket("chain.body")  // block hash -> body
	propStoreName  = kv.Bucket("chain.props") // named properties, metadata
	numStoreName   = kv.Bucket("chain.num")   // height -> main chain block hash
	utxoStoreName  = kv.Bucket("chain.utxo")  // commitment -> spendable output record
	stxoStoreName  = kv.Bucket("chain.stxo")  // height+commitment -> spent output record
	reorgStoreName = kv.Bucket("chain.reorg") // sequence -> reorg record

	cpOutputStoreName = kv.Bucket("cp.out") // rank -> output checkpoint
	cpKernelStoreName = kv.Bucket("cp.krn") // rank -> kernel checkpoint
	cpProofStoreName  = kv.Bucket("cp.rp")  // rank -> range proof checkpoint

	mmrOutputStoreName = kv.Bucket("mmr.out") // output accumulator nodes
	mmrKernelStoreName = kv.Bucket("mmr.krn") // kernel accumulator nodes
	mmrProofStoreName  = kv.Bucket("mmr.rp")  // range proof accumulator nodes
)

var (
	metadataKey   = []byte("chain-metadata")
	inProgressKey = []byte("txn-in-progress")
)

// outputRecord locates a spendable output: the full output plus its leaf
// index in the output accumulator. Moved to the spent bucket when spent,
// so a rewind can restore it without recomputation.
type outputRecord struct {
	LeafIndex uint64
	Output    tx.TransactionOutput
}

func saveRLP(w kv.Putter, key []byte, val interface{}) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, data)
}

func loadRLP(r kv.Getter, key []byte, val interface{}) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(data, val)
}

func numKey(height uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], height)
	return key[:]
}

func rankKey(rank uint64) []byte {
	return numKey(rank)
}

// stxoKey orders spent records by spend height so rewind and pruning can
// range-scan them.
func stxoKey(height uint64, commitment quarry.Bytes32) []byte {
	key := make([]byte, 0, 8+32)
	key = binary.BigEndian.AppendUint64(key, height)
	return append(key, commitment.Bytes()...)
}

func saveHeader(w kv.Putter, header *block.Header) error {
	hash := header.Hash()
	return saveRLP(w, hash.Bytes(), header)
}

func loadHeader(r kv.Getter, hash quarry.Bytes32) (*block.Header, error) {
	var header block.Header
	if err := loadRLP(r, hash.Bytes(), &header); err != nil {
		return nil, err
	}
	return &header, nil
}

func saveBody(w kv.Putter, hash quarry.Bytes32, body *block.Body) error {
	return saveRLP(w, hash.Bytes(), body)
}

func loadBody(r kv.Getter, hash quarry.Bytes32) (*block.Body, error) {
	var body block.Body
	if err := loadRLP(r, hash.Bytes(), &body); err != nil {
		return nil, err
	}
	return &body, nil
}
