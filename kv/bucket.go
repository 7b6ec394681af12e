// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import "github.com/syndtr/goleveldb/leveldb/util"

// Bucket provides logical bucket for kv store, by prefixing all keys.
type Bucket string

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &bucketGetter{string(b), src}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &bucketPutter{string(b), src}
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{
		bucketGetter{string(b), src},
		bucketPutter{string(b), src},
		src,
	}
}

type bucketGetter struct {
	prefix string
	src    Getter
}

func (g *bucketGetter) Get(key []byte) ([]byte, error) {
	return g.src.Get(append([]byte(g.prefix), key...))
}

func (g *bucketGetter) Has(key []byte) (bool, error) {
	return g.src.Has(append([]byte(g.prefix), key...))
}

func (g *bucketGetter) IsNotFound(err error) bool { return g.src.IsNotFound(err) }

type bucketPutter struct {
	prefix string
	src    Putter
}

func (p *bucketPutter) Put(key, val []byte) error {
	return p.src.Put(append([]byte(p.prefix), key...), val)
}

func (p *bucketPutter) Delete(key []byte) error {
	return p.src.Delete(append([]byte(p.prefix), key...))
}

type bucketStore struct {
	bucketGetter
	bucketPutter
	src Store
}

func (s *bucketStore) NewBatch() Batch {
	return &bucketBatch{s.bucketGetter.prefix, s.src.NewBatch()}
}

func (s *bucketStore) NewIterator(r Range) Iterator {
	prefix := []byte(s.bucketGetter.prefix)
	from := append(append([]byte(nil), prefix...), r.From...)
	var to []byte
	if len(r.To) == 0 {
		to = util.BytesPrefix(prefix).Limit
	} else {
		to = append(append([]byte(nil), prefix...), r.To...)
	}
	return &bucketIterator{s.src.NewIterator(Range{From: from, To: to}), len(prefix)}
}

type bucketBatch struct {
	prefix string
	src    Batch
}

func (b *bucketBatch) Put(key, val []byte) error {
	return b.src.Put(append([]byte(b.prefix), key...), val)
}

func (b *bucketBatch) Delete(key []byte) error {
	return b.src.Delete(append([]byte(b.prefix), key...))
}

func (b *bucketBatch) Len() int     { return b.src.Len() }
func (b *bucketBatch) Write() error { return b.src.Write() }

type bucketIterator struct {
	Iterator
	prefixLen int
}

// Key returns the key with the bucket prefix stripped.
func (i *bucketIterator) Key() []byte {
	return i.Iterator.Key()[i.prefixLen:]
}
