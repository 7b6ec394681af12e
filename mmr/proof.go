// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mmr

import (
	"github.com/quarrylabs/quarry/quarry"
)

// Proof is a merkle inclusion proof for a single leaf against the bagged
// root of a MountainRange of a known size.
type Proof struct {
	LeafIndex int
	Size      int // node count of the range the proof was generated for

	// Path holds the sibling hashes from the leaf up to its peak.
	Path []quarry.Bytes32
	// Peaks holds all peak hashes, largest tree first. The peak covering
	// the leaf is recomputed during verification and compared against its
	// slot.
	Peaks []quarry.Bytes32
}

// GenerateProof builds an inclusion proof for the given leaf index.
func (m *MountainRange) GenerateProof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= m.LeafCount() {
		return nil, ErrHashNotFound
	}
	size := m.backend.Len()
	peaks, err := peakPositions(size)
	if err != nil {
		return nil, err
	}

	proof := &Proof{LeafIndex: leafIndex, Size: size}
	for _, p := range peaks {
		h, ok := m.backend.Get(p)
		if !ok {
			return nil, ErrHashNotFound
		}
		proof.Peaks = append(proof.Peaks, h)
	}

	pos := leafPos(leafIndex)
	height := 0
	for !isPeak(pos, peaks) {
		var sibPos int
		if posHeight(pos+1) > height { // right child
			sibPos = pos - (2 << uint(height)) + 1
			pos++
		} else { // left child
			sibPos = pos + (2 << uint(height)) - 1
			pos += 2 << uint(height)
		}
		sib, ok := m.backend.Get(sibPos)
		if !ok {
			return nil, ErrHashNotFound
		}
		proof.Path = append(proof.Path, sib)
		height++
	}
	return proof, nil
}

// Verify checks the proof for the given leaf hash against the bagged root.
func (p *Proof) Verify(root, leaf quarry.Bytes32) error {
	peaks, err := peakPositions(p.Size)
	if err != nil {
		return err
	}
	if len(peaks) != len(p.Peaks) {
		return ErrProofInvalid
	}

	// climb from the leaf to its peak
	pos := leafPos(p.LeafIndex)
	hash := leaf
	height := 0
	for _, sib := range p.Path {
		if posHeight(pos+1) > height { // right child
			hash = hashNodes(sib, hash)
			pos++
		} else {
			hash = hashNodes(hash, sib)
			pos += 2 << uint(height)
		}
		height++
	}
	peakIdx := -1
	for i, pp := range peaks {
		if pp == pos {
			peakIdx = i
			break
		}
	}
	if peakIdx < 0 || p.Peaks[peakIdx] != hash {
		return ErrProofInvalid
	}

	// re-bag the peaks
	bagged := p.Peaks[0]
	for _, h := range p.Peaks[1:] {
		bagged = hashNodes(bagged, h)
	}
	if bagged != root {
		return ErrProofInvalid
	}
	return nil
}

func isPeak(pos int, peaks []int) bool {
	for _, p := range peaks {
		if p == pos {
			return true
		}
	}
	return false
}
