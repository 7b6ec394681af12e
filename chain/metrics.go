// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/quarrylabs/quarry/metrics"
)

var (
	metricBlocksAdded   = metrics.LazyLoadCounter("chain_block_added_count")
	metricBlocksOrphan  = metrics.LazyLoadCounter("chain_block_orphaned_count")
	metricReorgCount    = metrics.LazyLoadCounter("chain_reorg_count")
	metricBestHeight    = metrics.LazyLoadGauge("chain_best_height_gauge")
	metricReorgDepth    = metrics.LazyLoadHistogram("chain_reorg_depth_histogram", []int64{1, 2, 4, 8, 16, 32})
	metricOrphanPoolLen = metrics.LazyLoadGauge("chain_orphan_pool_gauge")
)
