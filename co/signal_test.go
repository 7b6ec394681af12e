// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalBroadcastBefore(t *testing.T) {
	var sig Signal
	sig.Broadcast()

	var ws []Waiter
	for i := 0; i < 10; i++ {
		ws = append(ws, sig.NewWaiter())
	}

	var wg sync.WaitGroup
	for _, w := range ws {
		wg.Add(1)
		go func(w Waiter) {
			defer wg.Done()
			<-w.C()
		}(w)
	}

	sig.Broadcast()
	wg.Wait()
}

func TestSignalValue(t *testing.T) {
	var sig Signal
	w := sig.NewWaiter()

	sig.Signal()
	assert.True(t, <-w.C(), "signal should deliver true")

	sig.Broadcast()
	assert.False(t, <-w.C(), "broadcast should deliver false")
}
