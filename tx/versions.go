// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// ErrUnsupportedVersion is returned when decoding hits a version byte this
// build does not recognize. It is a hard decode error, never a default.
var ErrUnsupportedVersion = errors.New("unsupported consensus version")

// Consensus-encoded structs lead with a single version byte; the fields
// that follow are interpreted according to it.

// OutputFeaturesVersion is the version byte of OutputFeatures.
type OutputFeaturesVersion byte

// OutputFeaturesVersionZero initial version.
const OutputFeaturesVersionZero OutputFeaturesVersion = 0

// EncodeRLP implements rlp.Encoder.
func (v OutputFeaturesVersion) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, byte(v))
}

// DecodeRLP implements rlp.Decoder.
func (v *OutputFeaturesVersion) DecodeRLP(s *rlp.Stream) error {
	var b byte
	if err := s.Decode(&b); err != nil {
		return err
	}
	if b > byte(OutputFeaturesVersionZero) {
		return errors.Wrapf(ErrUnsupportedVersion, "output features version %d", b)
	}
	*v = OutputFeaturesVersion(b)
	return nil
}

// TransactionInputVersion is the version byte of TransactionInput.
type TransactionInputVersion byte

// TransactionInputVersionZero initial version.
const TransactionInputVersionZero TransactionInputVersion = 0

// EncodeRLP implements rlp.Encoder.
func (v TransactionInputVersion) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, byte(v))
}

// DecodeRLP implements rlp.Decoder.
func (v *TransactionInputVersion) DecodeRLP(s *rlp.Stream) error {
	var b byte
	if err := s.Decode(&b); err != nil {
		return err
	}
	if b > byte(TransactionInputVersionZero) {
		return errors.Wrapf(ErrUnsupportedVersion, "transaction input version %d", b)
	}
	*v = TransactionInputVersion(b)
	return nil
}

// TransactionKernelVersion is the version byte of TransactionKernel.
type TransactionKernelVersion byte

// TransactionKernelVersionZero initial version.
const TransactionKernelVersionZero TransactionKernelVersion = 0

// EncodeRLP implements rlp.Encoder.
func (v TransactionKernelVersion) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, byte(v))
}

// DecodeRLP implements rlp.Decoder.
func (v *TransactionKernelVersion) DecodeRLP(s *rlp.Stream) error {
	var b byte
	if err := s.Decode(&b); err != nil {
		return err
	}
	if b > byte(TransactionKernelVersionZero) {
		return errors.Wrapf(ErrUnsupportedVersion, "transaction kernel version %d", b)
	}
	*v = TransactionKernelVersion(b)
	return nil
}
