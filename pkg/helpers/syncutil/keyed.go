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
	"cmp"
	"slices"
)

// KeyedMutex is a set of try-locks keyed by K. It never blocks: a key that
// is already held makes TryLock return false, so callers reject the second
// operation instead of queueing it behind the first.
type KeyedMutex[K cmp.Ordered] struct {
	held map[K]struct{}
	// acquisitions counts successful locks per key
	acquisitions map[K]uint64
	mu           Mutex
}

func NewKeyedMutex[K cmp.Ordered]() *KeyedMutex[K] {
	return &KeyedMutex[K]{
		held:         make(map[K]struct{}),
		acquisitions: make(map[K]uint64),
	}
}

// Stamp records which keys were held and how often each had been acquired
// at one instant. TryLockAllSince uses it to find keys another caller
// touched in between.
type Stamp[K cmp.Ordered] struct {
	held         map[K]bool
	acquisitions map[K]uint64
}

func (s Stamp[K]) touched(m *KeyedMutex[K], key K) bool {
	return s.held[key] || m.acquisitions[key] != s.acquisitions[key]
}

func (m *KeyedMutex[K]) Stamp() Stamp[K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stamp[K]{
		held:         make(map[K]bool, len(m.held)),
		acquisitions: make(map[K]uint64, len(m.acquisitions)),
	}
	for key := range m.held {
		s.held[key] = true
	}
	for key, n := range m.acquisitions {
		s.acquisitions[key] = n
	}
	return s
}

// TryLock acquires key if it is free.
func (m *KeyedMutex[K]) TryLock(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return false
	}
	m.lock(key)
	return true
}

// lock marks key held; m.mu must be held.
func (m *KeyedMutex[K]) lock(key K) {
	m.held[key] = struct{}{}
	m.acquisitions[key]++
}

// TryLockAll acquires every free key in keys and returns the ones it got,
// in ascending order. Keys already held are returned as busy.
func (m *KeyedMutex[K]) TryLockAll(keys []K) (acquired, busy []K) {
	acquired, busy, _ = m.tryLockAll(keys, nil)
	return acquired, busy
}

// TryLockAllSince is TryLockAll that also reports, as stale, the acquired
// keys that were held when s was taken or have been locked since. Work
// planned from state read after s is out of date for those keys.
func (m *KeyedMutex[K]) TryLockAllSince(keys []K, s Stamp[K]) (acquired, busy, stale []K) {
	return m.tryLockAll(keys, &s)
}

func (m *KeyedMutex[K]) tryLockAll(keys []K, s *Stamp[K]) (acquired, busy, stale []K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range slices.Compact(slices.Sorted(slices.Values(keys))) {
		if _, held := m.held[key]; held {
			busy = append(busy, key)
			continue
		}
		if s != nil && s.touched(m, key) {
			stale = append(stale, key)
		}
		m.lock(key)
		acquired = append(acquired, key)
	}
	return acquired, busy, stale
}

// Unlock releases key. Unlocking a free key is a programming error.
func (m *KeyedMutex[K]) Unlock(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.held[key]; !held {
		panic("syncutil: unlock of unlocked key")
	}
	delete(m.held, key)
}

// Held returns a snapshot of the keys currently locked.
func (m *KeyedMutex[K]) Held() map[K]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[K]bool, len(m.held))
	for key := range m.held {
		out[key] = true
	}
	return out
}
