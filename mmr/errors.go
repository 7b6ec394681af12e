// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import "github.com/pkg/errors"

var (
	// ErrHashNotFound is returned when a requested position was never appended.
	ErrHashNotFound = errors.New("hash not found")

	// ErrOutOfRange is returned for a leaf index beyond the current leaf count.
	ErrOutOfRange = errors.New("leaf index out of range")

	// ErrMaximumSizeReached is returned when the backend's capacity is exhausted.
	// Callers should treat it as a signal to prune or rotate, not retry.
	ErrMaximumSizeReached = errors.New("maximum accumulator size reached")

	// ErrInvalidMerkleTree signals an integrity failure: a computed parent hash
	// does not match the stored value. It is fatal and must abort the enclosing
	// transaction.
	ErrInvalidMerkleTree = errors.New("invalid merkle tree")

	// ErrCheckpointNotFound is returned when the requested rank is unknown or
	// already merged into the pruned base.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrProofInvalid is returned when a merkle proof fails verification.
	ErrProofInvalid = errors.New("invalid merkle proof")
)
