// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/tx"
)

// Body groups the ledger changes a block applies: outputs created,
// inputs spent and kernels committed.
type Body struct {
	Outputs []*tx.TransactionOutput
	Inputs  []*tx.TransactionInput
	Kernels []*tx.TransactionKernel
}

// Block is an immutable block consisting of a header and a body.
type Block struct {
	header *Header
	body   *Body
}

// New creates a block with the given header and body.
func New(header *Header, body *Body) *Block {
	if body == nil {
		body = &Body{}
	}
	return &Block{header: header, body: body}
}

// Header returns the block header.
func (b *Block) Header() *Header {
	return b.header
}

// Body returns the block body.
func (b *Block) Body() *Body {
	return b.body
}

// Hash returns the hash of the block header.
func (b *Block) Hash() quarry.Bytes32 {
	return b.header.Hash()
}

// Height returns the block's height.
func (b *Block) Height() uint64 {
	return b.header.Height()
}

// EncodeRLP implements rlp.Encoder.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []interface{}{
		b.header,
		b.body.Outputs,
		b.body.Inputs,
		b.body.Kernels,
	})
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	payload := struct {
		Header  Header
		Outputs []*tx.TransactionOutput
		Inputs  []*tx.TransactionInput
		Kernels []*tx.TransactionKernel
	}{}

	if err := s.Decode(&payload); err != nil {
		return err
	}

	*b = Block{
		header: &payload.Header,
		body: &Body{
			Outputs: payload.Outputs,
			Inputs:  payload.Inputs,
			Kernels: payload.Kernels,
		},
	}
	return nil
}
