// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"github.com/quarrylabs/quarry/quarry"
	"github.com/quarrylabs/quarry/tx"
)

// Builder easies block building.
type Builder struct {
	headerBody headerBody
	body       Body
}

// Height set height.
func (b *Builder) Height(height uint64) *Builder {
	b.headerBody.Height = height
	return b
}

// PrevHash set parent hash.
func (b *Builder) PrevHash(hash quarry.Bytes32) *Builder {
	b.headerBody.PrevHash = hash
	return b
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(ts uint64) *Builder {
	b.headerBody.Timestamp = ts
	return b
}

// TotalKernelOffset set total kernel offset.
func (b *Builder) TotalKernelOffset(offset quarry.Bytes32) *Builder {
	b.headerBody.TotalKernelOffset = offset
	return b
}

// OutputRoot set output accumulator root.
func (b *Builder) OutputRoot(root quarry.Bytes32) *Builder {
	b.headerBody.OutputRoot = root
	return b
}

// KernelRoot set kernel accumulator root.
func (b *Builder) KernelRoot(root quarry.Bytes32) *Builder {
	b.headerBody.KernelRoot = root
	return b
}

// RangeProofRoot set range proof accumulator root.
func (b *Builder) RangeProofRoot(root quarry.Bytes32) *Builder {
	b.headerBody.RangeProofRoot = root
	return b
}

// Nonce set proof of work nonce.
func (b *Builder) Nonce(nonce uint64) *Builder {
	b.headerBody.Nonce = nonce
	return b
}

// TotalWork set accumulated work.
func (b *Builder) TotalWork(work uint64) *Builder {
	b.headerBody.TotalWork = work
	return b
}

// Output add an output created by the block.
func (b *Builder) Output(out *tx.TransactionOutput) *Builder {
	b.body.Outputs = append(b.body.Outputs, out)
	return b
}

// Input add an input spent by the block.
func (b *Builder) Input(in *tx.TransactionInput) *Builder {
	b.body.Inputs = append(b.body.Inputs, in)
	return b
}

// Kernel add a kernel committed by the block.
func (b *Builder) Kernel(k *tx.TransactionKernel) *Builder {
	b.body.Kernels = append(b.body.Kernels, k)
	return b
}

// Build build a block object.
func (b *Builder) Build() *Block {
	header := Header{body: b.headerBody}
	body := b.body
	return New(&header, &body)
}
