// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package tx defines the ledger primitives committed by the accumulators:
// transaction outputs, the inputs that spend them, and kernels.
package tx

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/quarrylabs/quarry/quarry"
)

// OutputFlags bit flags of output features.
type OutputFlags byte

const (
	// FlagCoinbase marks a coinbase output, spendable only after maturity.
	FlagCoinbase OutputFlags = 1 << iota
)

// OutputFeatures describes the spending constraints of an output.
type OutputFeatures struct {
	Version        OutputFeaturesVersion
	Flags          OutputFlags
	MaturityHeight uint64
}

type outputFeaturesBody struct {
	Version        OutputFeaturesVersion
	Flags          byte
	MaturityHeight uint64
}

// EncodeRLP implements rlp.Encoder.
func (f *OutputFeatures) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &outputFeaturesBody{f.Version, byte(f.Flags), f.MaturityHeight})
}

// DecodeRLP implements rlp.Decoder.
func (f *OutputFeatures) DecodeRLP(s *rlp.Stream) error {
	var body outputFeaturesBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	*f = OutputFeatures{body.Version, OutputFlags(body.Flags), body.MaturityHeight}
	return nil
}

// TransactionOutput is a spendable output: a value commitment plus the
// hash of its range proof. Immutable once created.
type TransactionOutput struct {
	Features       OutputFeatures
	Commitment     quarry.Bytes32
	RangeProofHash quarry.Bytes32
}

// Hash returns the output's accumulator leaf hash.
func (o *TransactionOutput) Hash() quarry.Bytes32 {
	data, err := rlp.EncodeToBytes(o)
	if err != nil {
		// all fields are fixed-size encodable
		panic(err)
	}
	return quarry.Blake2b(data)
}

// SmtKey returns the key the output is tracked under in the spendable-set
// tree.
func (o *TransactionOutput) SmtKey() []byte {
	return o.Commitment.Bytes()
}
