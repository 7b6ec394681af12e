// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/quarrylabs/quarry/quarry"
)

// KernelFeatures bit flags of kernel features.
type KernelFeatures byte

const (
	// KernelCoinbase marks the kernel of a coinbase transaction.
	KernelCoinbase KernelFeatures = 1 << iota
)

// TransactionKernel carries the proof data of a transaction: the excess
// commitment and the hash of the signature over it. Immutable once
// created.
type TransactionKernel struct {
	Version       TransactionKernelVersion
	Features      KernelFeatures
	Fee           uint64
	LockHeight    uint64
	Excess        quarry.Bytes32
	ExcessSigHash quarry.Bytes32
}

// Hash returns the kernel's accumulator leaf hash.
func (k *TransactionKernel) Hash() quarry.Bytes32 {
	data, err := rlp.EncodeToBytes(k)
	if err != nil {
		panic(err)
	}
	return quarry.Blake2b(data)
}
