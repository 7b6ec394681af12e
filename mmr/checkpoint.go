// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	"io"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/quarry"
)

// CheckPoint records the accumulator delta of one applied block: which
// leaves were added and which existing leaf indices were marked deleted.
// Checkpoints are immutable once committed and form the basis of rewind.
type CheckPoint struct {
	nodesAdded   []quarry.Bytes32
	nodesDeleted *roaring.Bitmap
	rank         uint64
}

// NewCheckPoint creates a checkpoint from the given delta. Both the slice
// and the bitmap are copied.
func NewCheckPoint(nodesAdded []quarry.Bytes32, nodesDeleted *roaring.Bitmap, rank uint64) *CheckPoint {
	cp := &CheckPoint{
		nodesAdded: append([]quarry.Bytes32(nil), nodesAdded...),
		rank:       rank,
	}
	if nodesDeleted != nil {
		cp.nodesDeleted = nodesDeleted.Clone()
	} else {
		cp.nodesDeleted = roaring.New()
	}
	return cp
}

// NodesAdded returns the leaf hashes added by this checkpoint.
func (cp *CheckPoint) NodesAdded() []quarry.Bytes32 {
	return cp.nodesAdded
}

// NodesDeleted returns a copy of the deletion delta bitmap.
func (cp *CheckPoint) NodesDeleted() *roaring.Bitmap {
	return cp.nodesDeleted.Clone()
}

// Rank returns the monotonically increasing checkpoint sequence number.
func (cp *CheckPoint) Rank() uint64 {
	return cp.rank
}

type checkpointBody struct {
	NodesAdded   []quarry.Bytes32
	NodesDeleted []byte
	Rank         uint64
}

// EncodeRLP implements rlp.Encoder. The deletion bitmap is serialized with
// its portable byte encoding, preserved byte for byte through a round trip.
func (cp *CheckPoint) EncodeRLP(w io.Writer) error {
	bm, err := cp.nodesDeleted.ToBytes()
	if err != nil {
		return err
	}
	return rlp.Encode(w, &checkpointBody{
		NodesAdded:   cp.nodesAdded,
		NodesDeleted: bm,
		Rank:         cp.rank,
	})
}

// DecodeRLP implements rlp.Decoder.
func (cp *CheckPoint) DecodeRLP(s *rlp.Stream) error {
	var body checkpointBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	bm := roaring.New()
	if len(body.NodesDeleted) > 0 {
		if err := bm.UnmarshalBinary(body.NodesDeleted); err != nil {
			return errors.Wrap(err, "decode deletion bitmap")
		}
	}
	*cp = CheckPoint{
		nodesAdded:   body.NodesAdded,
		nodesDeleted: bm,
		rank:         body.Rank,
	}
	return nil
}

// MergeCheckPoints folds a run of consecutive checkpoints into one:
// additions concatenate in rank order, deletions union. The merged
// checkpoint keeps the rank of the last input, so replaying it yields the
// same accumulator state as replaying the run. Used when pruning collapses
// history beyond the horizon.
func MergeCheckPoints(cps []*CheckPoint) (*CheckPoint, error) {
	if len(cps) == 0 {
		return nil, errors.Wrap(ErrCheckpointNotFound, "nothing to merge")
	}
	merged := &CheckPoint{
		nodesDeleted: roaring.New(),
		rank:         cps[len(cps)-1].rank,
	}
	for i, cp := range cps {
		if i > 0 && cp.rank != cps[i-1].rank+1 {
			return nil, errors.Wrapf(ErrCheckpointNotFound, "rank gap between %d and %d", cps[i-1].rank, cp.rank)
		}
		merged.nodesAdded = append(merged.nodesAdded, cp.nodesAdded...)
		merged.nodesDeleted.Or(cp.nodesDeleted)
	}
	return merged, nil
}
