// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package quarry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry/quarry"
)

func TestParseBytes32(t *testing.T) {
	b32 := quarry.Blake2b([]byte("quarry"))

	parsed, err := quarry.ParseBytes32(b32.String())
	assert.Nil(t, err)
	assert.Equal(t, b32, parsed)

	_, err = quarry.ParseBytes32("0x123")
	assert.NotNil(t, err)

	_, err = quarry.ParseBytes32("zz" + b32.String()[2:])
	assert.NotNil(t, err)
}

func TestBytesToBytes32(t *testing.T) {
	assert.True(t, quarry.BytesToBytes32(nil).IsZero())
	assert.Equal(t, quarry.Bytes32{31: 1}, quarry.BytesToBytes32([]byte{1}))

	long := make([]byte, 40)
	long[39] = 7
	assert.Equal(t, quarry.Bytes32{31: 7}, quarry.BytesToBytes32(long))
}

func TestBlake2b(t *testing.T) {
	// multi-slice write equals single-slice write
	assert.Equal(t,
		quarry.Blake2b([]byte("ab")),
		quarry.Blake2b([]byte("a"), []byte("b")))
	assert.False(t, quarry.Blake2b([]byte("a")).IsZero())
}
