// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/quarrylabs/quarry/kv"
	"github.com/quarrylabs/quarry/quarry"
)

// Metadata is the single mutable record describing the committed chain.
// It's updated only as the final step of a successful transaction, so
// readers always observe it in agreement with the accumulator state.
// Exposed to callers by value.
type Metadata struct {
	HeightOfLongestChain  uint64
	BestBlock             quarry.Bytes32
	AccumulatedDifficulty uint64
	PruningHorizon        uint64
	PrunedHeight          uint64
}

func saveMetadata(w kv.Putter, meta *Metadata) error {
	return saveRLP(w, metadataKey, meta)
}

func loadMetadata(r kv.Getter) (*Metadata, error) {
	var meta Metadata
	if err := loadRLP(r, metadataKey, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
