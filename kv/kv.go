// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kv defines the boundary between the chain state store and the
// underlying storage engine. Any key-value store able to provide these
// interfaces can back the chain.
package kv

// Getter wraps methods for getting kvs.
type Getter interface {
	// Get value for given key.
	// An error returned if key not found. It can be checked via IsNotFound.
	Get(key []byte) (value []byte, err error)
	Has(key []byte) (bool, error)
	IsNotFound(err error) bool
}

// Putter wraps methods for putting kvs.
type Putter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// GetPutter wraps methods for getting/putting kvs.
type GetPutter interface {
	Getter
	Putter
}

// Store is a full-featured kv store.
type Store interface {
	GetPutter

	NewBatch() Batch
	NewIterator(r Range) Iterator
}

// StoreCloser is a store with close method.
type StoreCloser interface {
	Store
	Close() error
}

// Batch defines batch of putting ops. All ops in a batch are written
// atomically via Write.
type Batch interface {
	Putter

	Len() int
	Write() error
}

// Iterator to iterate kvs.
type Iterator interface {
	Next() bool
	Release()
	Error() error

	Key() []byte
	Value() []byte
}

// Range is the key range [From, To) to iterate over.
// A zero value covers the whole key space.
type Range struct {
	From []byte
	To   []byte
}
