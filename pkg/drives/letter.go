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

// Package drives models the drive letters this application may hand out
// and the OS volume layer behind them.
package drives

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidLetter is returned when a string cannot be parsed as a drive letter.
var ErrInvalidLetter = errors.New("invalid drive letter")

// Letter is a single uppercase drive letter (A-Z). The zero value means
// "no letter".
type Letter byte

// ParseLetter accepts "v", "V", "V:" and `V:\`.
func ParseLetter(s string) (Letter, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, `\`)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ":")
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLetter, s)
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLetter, s)
	}
	return Letter(c), nil
}

// MustLetter is ParseLetter for constants and tests.
func MustLetter(s string) Letter {
	l, err := ParseLetter(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Valid reports whether l is within A-Z.
func (l Letter) Valid() bool {
	return l >= 'A' && l <= 'Z'
}

func (l Letter) String() string {
	if !l.Valid() {
		return ""
	}
	return string(rune(l))
}

// Device returns the DOS device name, e.g. "V:".
func (l Letter) Device() string {
	return l.String() + ":"
}

// Root returns the root path of the volume, e.g. `V:\`.
func (l Letter) Root() string {
	return l.String() + `:\`
}

// Index is the bit position of the letter in GetLogicalDrives masks.
func (l Letter) Index() int {
	return int(l - 'A')
}

func (l Letter) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLetter, byte(l))
	}
	return []byte(l.String()), nil
}

func (l *Letter) UnmarshalText(text []byte) error {
	parsed, err := ParseLetter(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Alphabet is an ordered set of candidate letters.
type Alphabet []Letter

// ParseAlphabet accepts ranges ("V-Z"), runs ("VWXYZ") and comma or space
// separated lists ("V, W, X"). Duplicates are dropped, first occurrence wins.
func ParseAlphabet(s string) (Alphabet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty alphabet", ErrInvalidLetter)
	}

	var out Alphabet
	seen := make(map[Letter]bool)
	add := func(l Letter) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	for _, field := range fields {
		if from, to, ok := strings.Cut(field, "-"); ok {
			start, err := ParseLetter(from)
			if err != nil {
				return nil, err
			}
			end, err := ParseLetter(to)
			if err != nil {
				return nil, err
			}
			if end < start {
				for l := start; l >= end; l-- {
					add(l)
				}
				continue
			}
			for l := start; l <= end; l++ {
				add(l)
			}
			continue
		}
		if l, err := ParseLetter(field); err == nil {
			add(l)
			continue
		}
		for _, r := range field {
			l, err := ParseLetter(string(r))
			if err != nil {
				return nil, err
			}
			add(l)
		}
	}

	return out, nil
}

// MustParseAlphabet is ParseAlphabet for constants and tests.
func MustParseAlphabet(s string) Alphabet {
	a, err := ParseAlphabet(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Contains reports whether l is part of the alphabet.
func (a Alphabet) Contains(l Letter) bool {
	return slices.Contains(a, l)
}

// HighestFirst returns a copy ordered Z to A, which keeps allocations away
// from the letters Windows hands out to local disks and USB sticks.
func (a Alphabet) HighestFirst() Alphabet {
	out := slices.Clone(a)
	slices.SortFunc(out, func(x, y Letter) int {
		return int(y) - int(x)
	})
	return out
}

// Sorted returns a copy ordered A to Z.
func (a Alphabet) Sorted() Alphabet {
	out := slices.Clone(a)
	slices.Sort(out)
	return out
}

func (a Alphabet) String() string {
	var sb strings.Builder
	for _, l := range a {
		sb.WriteString(l.String())
	}
	return sb.String()
}
