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

package drives

// RegisteredSet reports letters the application already tracks, in any
// status.
type RegisteredSet interface {
	Has(l Letter) bool
}

// Partition splits the candidate alphabet at one instant.
type Partition struct {
	SystemOccupied Alphabet `json:"system_occupied"`
	Registered     Alphabet `json:"registered"`
	Free           Alphabet `json:"free"`
}

// Pool hands out letters from a fixed candidate alphabet. It keeps no state
// of its own: the OS-occupied set can change at any time, so every call
// probes again.
type Pool struct {
	volumes    VolumeInspector
	registered RegisteredSet
	alphabet   Alphabet
}

func NewPool(alphabet Alphabet, volumes VolumeInspector, registered RegisteredSet) *Pool {
	return &Pool{
		alphabet:   alphabet,
		volumes:    volumes,
		registered: registered,
	}
}

// Alphabet returns the configured candidate letters.
func (p *Pool) Alphabet() Alphabet {
	return p.alphabet
}

// NextAvailable returns the first letter in preferred that is neither
// occupied by the OS nor registered. Letters outside the pool's alphabet are
// ignored. An empty preferred range means the whole alphabet, highest first.
// The second return value is false when the pool is exhausted.
func (p *Pool) NextAvailable(preferred Alphabet) (Letter, bool) {
	if len(preferred) == 0 {
		preferred = p.alphabet.HighestFirst()
	}

	for _, l := range preferred {
		if !p.alphabet.Contains(l) {
			continue
		}
		if p.registered != nil && p.registered.Has(l) {
			continue
		}
		if p.volumes.VolumeExists(l) {
			continue
		}
		return l, true
	}

	return 0, false
}

// IsFree reports whether a single letter is in the alphabet and free.
func (p *Pool) IsFree(l Letter) bool {
	_, ok := p.NextAvailable(Alphabet{l})
	return ok
}

// Partition classifies every candidate letter. Registered wins over
// SystemOccupied: a letter this application mounted is also visible to the
// OS, but it is ours.
func (p *Pool) Partition() Partition {
	part := Partition{
		SystemOccupied: Alphabet{},
		Registered:     Alphabet{},
		Free:           Alphabet{},
	}
	for _, l := range p.alphabet.Sorted() {
		switch {
		case p.registered != nil && p.registered.Has(l):
			part.Registered = append(part.Registered, l)
		case p.volumes.VolumeExists(l):
			part.SystemOccupied = append(part.SystemOccupied, l)
		default:
			part.Free = append(part.Free, l)
		}
	}
	return part
}
