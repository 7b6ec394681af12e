// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/quarrylabs/quarry/block"
)

// BlockEventType discriminates block events.
type BlockEventType byte

const (
	// BlockAdded the best chain was extended by one block.
	BlockAdded BlockEventType = iota
	// ChainReorged the best chain tip moved to a competing branch.
	ChainReorged
	// BlockSyncRewind committed blocks were removed by an administrative
	// rewind.
	BlockSyncRewind
)

func (t BlockEventType) String() string {
	switch t {
	case BlockAdded:
		return "added"
	case ChainReorged:
		return "reorged"
	case BlockSyncRewind:
		return "rewind"
	default:
		return "unknown"
	}
}

// BlockEvent notifies subscribers of a change to the committed chain.
// Added and Removed carry the affected blocks; for a simple extension
// Added holds the one new block and Removed is empty.
type BlockEvent struct {
	Type    BlockEventType
	Added   []*block.Block
	Removed []*block.Block
}
