// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/quarrylabs/quarry/quarry"
)

// MutableMmr extends the append-only range with a deletion bitmap over
// leaf indices. Deletion never removes a node from the append log; it
// flips a bit out of band, so the log only grows while the effective leaf
// count can shrink. Historical proofs against earlier states stay intact
// until the covering checkpoints are pruned.
type MutableMmr struct {
	*MountainRange
	deleted *roaring.Bitmap
}

// NewMutable creates a MutableMmr over the given backend with an empty
// deletion bitmap.
func NewMutable(backend Backend) *MutableMmr {
	return &MutableMmr{
		MountainRange: New(backend),
		deleted:       roaring.New(),
	}
}

// MarkDeleted flips the deletion bit of the given leaf. It reports whether
// the leaf was newly marked; marking an already-deleted leaf is a no-op.
func (m *MutableMmr) MarkDeleted(leafIndex int) (bool, error) {
	if leafIndex < 0 || leafIndex >= m.LeafCount() {
		return false, ErrOutOfRange
	}
	return m.deleted.CheckedAdd(uint32(leafIndex)), nil
}

// IsDeleted returns whether the leaf carries a deletion marker.
func (m *MutableMmr) IsDeleted(leafIndex int) bool {
	return m.deleted.Contains(uint32(leafIndex))
}

// EffectiveLeafCount returns the count of leaves not marked deleted.
func (m *MutableMmr) EffectiveLeafCount() int {
	return m.LeafCount() - int(m.deleted.GetCardinality())
}

// Deleted returns a copy of the deletion bitmap.
func (m *MutableMmr) Deleted() *roaring.Bitmap {
	return m.deleted.Clone()
}

// Root commits to both the append log and the deletion bitmap:
// blake2b(baggedRoot || bitmapBytes).
func (m *MutableMmr) Root() (quarry.Bytes32, error) {
	base, err := m.MountainRange.Root()
	if err != nil {
		return quarry.Bytes32{}, err
	}
	bm, err := m.deleted.ToBytes()
	if err != nil {
		return quarry.Bytes32{}, err
	}
	return quarry.Blake2b(base[:], bm), nil
}

// reset clears the append log and the deletion bitmap.
func (m *MutableMmr) reset() error {
	if err := m.backend.Clear(); err != nil {
		return err
	}
	m.deleted.Clear()
	return nil
}
