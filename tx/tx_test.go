// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/quarry"
)

func testOutput(i byte) *TransactionOutput {
	return &TransactionOutput{
		Features: OutputFeatures{
			Version:        OutputFeaturesVersionZero,
			Flags:          0,
			MaturityHeight: 0,
		},
		Commitment:     quarry.Blake2b([]byte{'c', i}),
		RangeProofHash: quarry.Blake2b([]byte{'r', i}),
	}
}

func TestOutputRoundTrip(t *testing.T) {
	out := testOutput(1)
	out.Features.Flags = FlagCoinbase
	out.Features.MaturityHeight = 120

	data, err := rlp.EncodeToBytes(out)
	require.NoError(t, err)

	var decoded TransactionOutput
	require.NoError(t, rlp.DecodeBytes(data, &decoded))
	assert.Equal(t, *out, decoded)
	assert.Equal(t, out.Hash(), decoded.Hash())
}

func TestOutputHash(t *testing.T) {
	a, b := testOutput(1), testOutput(2)
	assert.Equal(t, a.Hash(), testOutput(1).Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())

	// features participate in the hash
	c := testOutput(1)
	c.Features.MaturityHeight = 1
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestInputRoundTrip(t *testing.T) {
	in := &TransactionInput{
		Version:     TransactionInputVersionZero,
		SpentOutput: *testOutput(3),
	}

	data, err := rlp.EncodeToBytes(in)
	require.NoError(t, err)

	var decoded TransactionInput
	require.NoError(t, rlp.DecodeBytes(data, &decoded))
	assert.Equal(t, *in, decoded)
	assert.Equal(t, in.SpentOutput.Hash(), decoded.OutputHash())
}

func TestKernelRoundTrip(t *testing.T) {
	k := &TransactionKernel{
		Version:       TransactionKernelVersionZero,
		Features:      KernelCoinbase,
		Fee:           25,
		LockHeight:    100,
		Excess:        quarry.Blake2b([]byte("excess")),
		ExcessSigHash: quarry.Blake2b([]byte("sig")),
	}

	data, err := rlp.EncodeToBytes(k)
	require.NoError(t, err)

	var decoded TransactionKernel
	require.NoError(t, rlp.DecodeBytes(data, &decoded))
	assert.Equal(t, *k, decoded)
	assert.Equal(t, k.Hash(), decoded.Hash())
}

// An unknown version byte is a hard decode error, never reinterpreted
// as some default.
func TestUnsupportedVersion(t *testing.T) {
	out := testOutput(1)
	data, err := rlp.EncodeToBytes(out)
	require.NoError(t, err)

	// the version byte is the first list element; bump it
	var raw []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(data, &raw))

	var feats []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(raw[0], &feats))
	feats[0], err = rlp.EncodeToBytes(byte(7))
	require.NoError(t, err)
	raw[0], err = rlp.EncodeToBytes(feats)
	require.NoError(t, err)
	data, err = rlp.EncodeToBytes(raw)
	require.NoError(t, err)

	var decoded TransactionOutput
	assert.ErrorIs(t, rlp.DecodeBytes(data, &decoded), ErrUnsupportedVersion)

	// kernels too
	kdata, err := rlp.EncodeToBytes(&TransactionKernel{})
	require.NoError(t, err)
	var kraw []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(kdata, &kraw))
	kraw[0], err = rlp.EncodeToBytes(byte(1))
	require.NoError(t, err)
	kdata, err = rlp.EncodeToBytes(kraw)
	require.NoError(t, err)

	var k TransactionKernel
	assert.ErrorIs(t, rlp.DecodeBytes(kdata, &k), ErrUnsupportedVersion)
}
