// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lvldb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry/kv"
)

func TestGetPut(t *testing.T) {
	db, err := NewMem()
	assert.Nil(t, err)
	defer db.Close()

	_, err = db.Get([]byte("missing"))
	assert.True(t, db.IsNotFound(err))

	assert.Nil(t, db.Put([]byte("key"), []byte("value")))
	v, err := db.Get([]byte("key"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("value"), v)

	has, err := db.Has([]byte("key"))
	assert.Nil(t, err)
	assert.True(t, has)

	assert.Nil(t, db.Delete([]byte("key")))
	_, err = db.Get([]byte("key"))
	assert.True(t, db.IsNotFound(err))
}

func TestBatch(t *testing.T) {
	db, _ := NewMem()
	defer db.Close()

	batch := db.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	assert.Equal(t, 2, batch.Len())

	// nothing visible until Write
	_, err := db.Get([]byte("a"))
	assert.True(t, db.IsNotFound(err))

	assert.Nil(t, batch.Write())
	v, _ := db.Get([]byte("b"))
	assert.Equal(t, []byte("2"), v)
}

func TestIterate(t *testing.T) {
	db, _ := NewMem()
	defer db.Close()

	db.Put([]byte("k1"), []byte("1"))
	db.Put([]byte("k2"), []byte("2"))
	db.Put([]byte("x1"), []byte("3"))

	iter := db.NewIterator(kv.Range{From: []byte("k"), To: []byte("l")})
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	assert.Nil(t, iter.Error())
	assert.Equal(t, []string{"k1", "k2"}, keys)
}
