// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a requested block, header or record is
	// not in the store.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGenesis is returned when the supplied genesis block is
	// malformed or disagrees with the one already committed.
	ErrInvalidGenesis = errors.New("invalid genesis")

	// ErrOutputNotSpendable is returned when a block spends a commitment
	// that is not in the spendable set.
	ErrOutputNotSpendable = errors.New("output not spendable")

	// ErrInvalidBlock is returned when a submitted block breaks chain
	// structure rules, such as a height not equal to parent height + 1.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrCorruptDataStructure indicates committed state that violates the
	// store's invariants. Fatal, never auto-repaired.
	ErrCorruptDataStructure = errors.New("corrupt data structure")

	// ErrInvalidConfig is returned when a configuration change is rejected
	// at the API boundary, before any state is touched.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidRewind is returned when a rewind target is above the
	// current tip.
	ErrInvalidRewind = errors.New("invalid rewind")

	// ErrBeyondPruningHorizon is returned when an operation needs history
	// that pruning has already discarded.
	ErrBeyondPruningHorizon = errors.New("beyond pruning horizon")

	// ErrReorgTooDeep is returned when a competing branch forks below the
	// maximum reorg depth and is rejected outright.
	ErrReorgTooDeep = errors.New("reorg too deep")
)
