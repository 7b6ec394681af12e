// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/quarry"
)

// ChangeTracker is a checkpointed MutableMmr. Mutations accumulate as a
// pending delta until Commit flushes them into one CheckPoint; committed
// checkpoints can be rewound in reverse rank order, which rebuilds the
// accumulator by replay.
type ChangeTracker struct {
	mmr         *MutableMmr
	checkpoints []*CheckPoint

	pendingAdded   []quarry.Bytes32
	pendingDeleted *roaring.Bitmap
}

// NewChangeTracker creates a tracker over an empty backend.
func NewChangeTracker(backend Backend) *ChangeTracker {
	return &ChangeTracker{
		mmr:            NewMutable(backend),
		pendingDeleted: roaring.New(),
	}
}

// Load replaces the tracker state by replaying the given committed
// checkpoints, which must be rank-consecutive. Pending changes are dropped.
func (t *ChangeTracker) Load(cps []*CheckPoint) error {
	t.checkpoints = append([]*CheckPoint(nil), cps...)
	return t.rebuild()
}

// Append stages a new leaf and returns its leaf index.
func (t *ChangeTracker) Append(leaf quarry.Bytes32) (int, error) {
	leafIndex, err := t.mmr.Append(leaf)
	if err != nil {
		return 0, err
	}
	t.pendingAdded = append(t.pendingAdded, leaf)
	return leafIndex, nil
}

// MarkDeleted stages a deletion marker for the given leaf. It reports
// whether the leaf was newly marked.
func (t *ChangeTracker) MarkDeleted(leafIndex int) (bool, error) {
	marked, err := t.mmr.MarkDeleted(leafIndex)
	if err != nil {
		return false, err
	}
	if marked {
		t.pendingDeleted.Add(uint32(leafIndex))
	}
	return marked, nil
}

// GetLeafHash returns the leaf hash regardless of its deletion marker.
func (t *ChangeTracker) GetLeafHash(leafIndex int) (quarry.Bytes32, error) {
	return t.mmr.GetLeafHash(leafIndex)
}

// IsDeleted returns whether the leaf carries a deletion marker.
func (t *ChangeTracker) IsDeleted(leafIndex int) bool {
	return t.mmr.IsDeleted(leafIndex)
}

// Root returns the commitment over the append log and deletion bitmap,
// pending changes included.
func (t *ChangeTracker) Root() (quarry.Bytes32, error) {
	return t.mmr.Root()
}

// LeafCount returns the total appended leaf count, pending included.
func (t *ChangeTracker) LeafCount() int {
	return t.mmr.LeafCount()
}

// EffectiveLeafCount returns the count of leaves not marked deleted.
func (t *ChangeTracker) EffectiveLeafCount() int {
	return t.mmr.EffectiveLeafCount()
}

// BaggedRoot returns the commitment over the append log alone, which
// inclusion proofs verify against.
func (t *ChangeTracker) BaggedRoot() (quarry.Bytes32, error) {
	return t.mmr.MountainRange.Root()
}

// GenerateProof builds an inclusion proof against the current bagged root.
func (t *ChangeTracker) GenerateProof(leafIndex int) (*Proof, error) {
	return t.mmr.GenerateProof(leafIndex)
}

// HasPending returns whether uncommitted changes exist.
func (t *ChangeTracker) HasPending() bool {
	return len(t.pendingAdded) > 0 || !t.pendingDeleted.IsEmpty()
}

// BaseRank returns the rank of the oldest retained checkpoint.
func (t *ChangeTracker) BaseRank() (uint64, bool) {
	if len(t.checkpoints) == 0 {
		return 0, false
	}
	return t.checkpoints[0].rank, true
}

// NextRank returns the rank the next Commit will be assigned.
func (t *ChangeTracker) NextRank() uint64 {
	if len(t.checkpoints) == 0 {
		return 0
	}
	return t.checkpoints[len(t.checkpoints)-1].rank + 1
}

// CheckpointCount returns the number of retained checkpoints.
func (t *ChangeTracker) CheckpointCount() int {
	return len(t.checkpoints)
}

// Checkpoint returns the committed checkpoint with the given rank.
func (t *ChangeTracker) Checkpoint(rank uint64) (*CheckPoint, error) {
	idx, err := t.rankIndex(rank)
	if err != nil {
		return nil, err
	}
	return t.checkpoints[idx], nil
}

// Commit flushes pending additions and deletions since the last commit
// into one checkpoint and appends it to the log. Committing an empty delta
// is allowed and yields an empty checkpoint.
func (t *ChangeTracker) Commit() (*CheckPoint, error) {
	cp := NewCheckPoint(t.pendingAdded, t.pendingDeleted, t.NextRank())
	t.checkpoints = append(t.checkpoints, cp)
	t.pendingAdded = nil
	t.pendingDeleted = roaring.New()
	return cp, nil
}

// Discard drops all pending changes, restoring the state of the last
// committed checkpoint.
func (t *ChangeTracker) Discard() error {
	if !t.HasPending() {
		return nil
	}
	t.pendingAdded = nil
	t.pendingDeleted = roaring.New()
	return t.rebuild()
}

// RewindToRank undoes committed checkpoints down to (and keeping) the
// given rank, restoring the accumulator to the state right after that
// checkpoint was applied. Pending changes are dropped.
func (t *ChangeTracker) RewindToRank(rank uint64) error {
	idx, err := t.rankIndex(rank)
	if err != nil {
		return err
	}
	t.checkpoints = t.checkpoints[:idx+1]
	t.pendingAdded = nil
	t.pendingDeleted = roaring.New()
	return t.rebuild()
}

// MergeToRank folds all checkpoints up to the given rank into a single
// base checkpoint. Accumulator state is unchanged; ranks below the merged
// base become unavailable for rewind.
func (t *ChangeTracker) MergeToRank(rank uint64) error {
	idx, err := t.rankIndex(rank)
	if err != nil {
		return err
	}
	if idx == 0 {
		return nil
	}
	merged, err := MergeCheckPoints(t.checkpoints[:idx+1])
	if err != nil {
		return err
	}
	t.checkpoints = append([]*CheckPoint{merged}, t.checkpoints[idx+1:]...)
	return nil
}

func (t *ChangeTracker) rankIndex(rank uint64) (int, error) {
	if len(t.checkpoints) == 0 {
		return 0, ErrCheckpointNotFound
	}
	base := t.checkpoints[0].rank
	last := t.checkpoints[len(t.checkpoints)-1].rank
	if rank < base || rank > last {
		return 0, errors.Wrapf(ErrCheckpointNotFound, "rank %d outside [%d, %d]", rank, base, last)
	}
	return int(rank - base), nil
}

func (t *ChangeTracker) rebuild() error {
	if err := t.mmr.reset(); err != nil {
		return err
	}
	for _, cp := range t.checkpoints {
		if err := t.applyCheckpoint(cp); err != nil {
			return err
		}
	}
	return nil
}

func (t *ChangeTracker) applyCheckpoint(cp *CheckPoint) error {
	for _, leaf := range cp.nodesAdded {
		if _, err := t.mmr.Append(leaf); err != nil {
			return err
		}
	}
	iter := cp.nodesDeleted.Iterator()
	for iter.HasNext() {
		if _, err := t.mmr.MarkDeleted(int(iter.Next())); err != nil {
			return errors.Wrapf(ErrInvalidMerkleTree, "checkpoint %d deletes unknown leaf", cp.rank)
		}
	}
	return nil
}
