// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/quarrylabs/quarry/quarry"
)

// TransactionInput spends an output. It embeds the full spent output so
// the chain store can restore the spendable set on rewind without any
// extra lookups.
type TransactionInput struct {
	Version     TransactionInputVersion
	SpentOutput TransactionOutput
}

// OutputHash returns the leaf hash of the output being spent.
func (in *TransactionInput) OutputHash() quarry.Bytes32 {
	return in.SpentOutput.Hash()
}

// Commitment returns the commitment of the output being spent.
func (in *TransactionInput) Commitment() quarry.Bytes32 {
	return in.SpentOutput.Commitment
}
