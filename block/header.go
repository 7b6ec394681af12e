// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package block defines block and header types, immutable once created.
package block

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/tx"
)

// HeaderVersion is the version byte of a block header.
type HeaderVersion byte

// HeaderVersionZero initial version.
const HeaderVersionZero HeaderVersion = 0

// EncodeRLP implements rlp.Encoder.
func (v HeaderVersion) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, byte(v))
}

// DecodeRLP implements rlp.Decoder.
func (v *HeaderVersion) DecodeRLP(s *rlp.Stream) error {
	var b byte
	if err := s.Decode(&b); err != nil {
		return err
	}
	if b > byte(HeaderVersionZero) {
		return errors.Wrapf(tx.ErrUnsupportedVersion, "block header version %d", b)
	}
	*v = HeaderVersion(b)
	return nil
}

// Header contains all information about a block except its body.
// It's immutable.
type Header struct {
	body headerBody

	cache struct {
		hash atomic.Value
	}
}

// headerBody body of header
type headerBody struct {
	Version   HeaderVersion
	Height    uint64
	PrevHash  quarry.Bytes32
	Timestamp uint64

	TotalKernelOffset quarry.Bytes32

	OutputRoot     quarry.Bytes32
	KernelRoot     quarry.Bytes32
	RangeProofRoot quarry.Bytes32

	Nonce     uint64
	TotalWork uint64
}

// Version returns the header version.
func (h *Header) Version() HeaderVersion {
	return h.body.Version
}

// Height returns the block's distance from genesis.
func (h *Header) Height() uint64 {
	return h.body.Height
}

// PrevHash returns the hash of the parent block.
func (h *Header) PrevHash() quarry.Bytes32 {
	return h.body.PrevHash
}

// Timestamp returns the block's timestamp.
func (h *Header) Timestamp() uint64 {
	return h.body.Timestamp
}

// TotalKernelOffset returns the sum of kernel offsets up to and
// including this block.
func (h *Header) TotalKernelOffset() quarry.Bytes32 {
	return h.body.TotalKernelOffset
}

// OutputRoot returns the output accumulator root after this block.
func (h *Header) OutputRoot() quarry.Bytes32 {
	return h.body.OutputRoot
}

// KernelRoot returns the kernel accumulator root after this block.
func (h *Header) KernelRoot() quarry.Bytes32 {
	return h.body.KernelRoot
}

// RangeProofRoot returns the range proof accumulator root after this block.
func (h *Header) RangeProofRoot() quarry.Bytes32 {
	return h.body.RangeProofRoot
}

// Nonce returns the proof of work nonce.
func (h *Header) Nonce() uint64 {
	return h.body.Nonce
}

// TotalWork returns the work accumulated from genesis to this block.
// Chain selection compares total work, never height.
func (h *Header) TotalWork() uint64 {
	return h.body.TotalWork
}

// Hash computes the hash of the header, which identifies the block.
func (h *Header) Hash() quarry.Bytes32 {
	if cached := h.cache.hash.Load(); cached != nil {
		return cached.(quarry.Bytes32)
	}

	data, err := rlp.EncodeToBytes(&h.body)
	if err != nil {
		panic(err)
	}
	hash := quarry.Blake2b(data)
	h.cache.hash.Store(hash)
	return hash
}

// EncodeRLP implements rlp.Encoder.
func (h *Header) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &h.body)
}

// DecodeRLP implements rlp.Decoder.
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	var body headerBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	*h = Header{body: body}
	return nil
}

func (h *Header) String() string {
	return fmt.Sprintf(`Header(%v):
	Height:            %v
	PrevHash:          %v
	Timestamp:         %v
	TotalKernelOffset: %v
	OutputRoot:        %v
	KernelRoot:        %v
	RangeProofRoot:    %v
	Nonce:             %v
	TotalWork:         %v`,
		h.Hash(), h.body.Height, h.body.PrevHash, h.body.Timestamp,
		h.body.TotalKernelOffset, h.body.OutputRoot, h.body.KernelRoot,
		h.body.RangeProofRoot, h.body.Nonce, h.body.TotalWork)
}
