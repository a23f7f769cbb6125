// Bucketdrive
// Copyright (c) 2026 The Bucketdrive Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Bucketdrive.
//
// Bucketdrive is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Bucketdrive is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Bucketdrive.  If not, see <http://www.gnu.org/licenses/>.

package syncutil

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_TryLock(t *testing.T) {
	t.Parallel()

	m := NewKeyedMutex[string]()

	require.True(t, m.TryLock("V"))
	assert.False(t, m.TryLock("V"), "second lock on same key must be rejected")
	assert.True(t, m.TryLock("W"), "other keys are independent")

	m.Unlock("V")
	assert.True(t, m.TryLock("V"))
}

func TestKeyedMutex_TryLockAll(t *testing.T) {
	t.Parallel()

	m := NewKeyedMutex[string]()
	require.True(t, m.TryLock("X"))

	acquired, busy := m.TryLockAll([]string{"Z", "X", "V"})

	assert.Equal(t, []string{"V", "Z"}, acquired)
	assert.Equal(t, []string{"X"}, busy)
	assert.Equal(t, map[string]bool{"V": true, "X": true, "Z": true}, m.Held())
}

func TestKeyedMutex_TryLockAllSince(t *testing.T) {
	t.Parallel()

	m := NewKeyedMutex[string]()
	require.True(t, m.TryLock("Y"))

	stamp := m.Stamp()

	// W is locked and released after the stamp, X is still held
	require.True(t, m.TryLock("W"))
	m.Unlock("W")
	require.True(t, m.TryLock("X"))
	m.Unlock("Y")

	acquired, busy, stale := m.TryLockAllSince([]string{"Z", "Y", "X", "W", "Z"}, stamp)

	assert.Equal(t, []string{"W", "Y", "Z"}, acquired)
	assert.Equal(t, []string{"X"}, busy)
	assert.Equal(t, []string{"W", "Y"}, stale, "Y was held at the stamp, W was locked after it")
}

func TestKeyedMutex_UnlockFreeKeyPanics(t *testing.T) {
	t.Parallel()

	m := NewKeyedMutex[int]()

	assert.Panics(t, func() { m.Unlock(1) })
}

func TestKeyedMutex_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	m := NewKeyedMutex[string]()
	var winners atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.TryLock("V") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
