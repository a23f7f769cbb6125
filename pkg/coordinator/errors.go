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

package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
)

// Kind classifies coordinator failures.
type Kind int

const (
	// KindLetterUnavailable: the pool is exhausted, the letter is taken, or
	// another operation holds it. Nothing changed; choose another letter
	// or retry later.
	KindLetterUnavailable Kind = iota + 1
	// KindSpawnFailed: the driver did not start or died before mounting.
	// Nothing changed.
	KindSpawnFailed
	// KindVerifyTimeout: the driver started but the mount never became
	// reachable. The driver was killed and the record is in Error.
	KindVerifyTimeout
	// KindTeardownPartialFailure: every release stage ran and the volume is
	// still there. The record is in Error.
	KindTeardownPartialFailure
	// KindProbeUnavailable: the OS process listing failed. Nothing changed.
	KindProbeUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindLetterUnavailable:
		return "letter_unavailable"
	case KindSpawnFailed:
		return "spawn_failed"
	case KindVerifyTimeout:
		return "verify_timeout"
	case KindTeardownPartialFailure:
		return "teardown_partial_failure"
	case KindProbeUnavailable:
		return "probe_unavailable"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindLetterUnavailable; k <= KindProbeUnavailable; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown error kind %q", s)
}

var (
	// ErrPoolExhausted means every candidate letter is occupied or registered.
	ErrPoolExhausted = errors.New("no free drive letter")
	// ErrLetterBusy means another operation holds the letter.
	ErrLetterBusy = errors.New("another operation is in progress on this letter")
	// ErrLetterInUse means the letter has an active or failed record.
	ErrLetterInUse = errors.New("letter already has a mount")
	// ErrLetterOccupied means the OS already has a volume at the letter.
	ErrLetterOccupied = errors.New("letter is occupied by another volume")
	// ErrOutsideAlphabet means a requested letter is not a candidate.
	ErrOutsideAlphabet = errors.New("letter is outside the configured range")
	// ErrInvalidRequest is returned for mount requests missing a remote.
	ErrInvalidRequest = errors.New("invalid mount request")
	// ErrVerifyTimeout is the cause of a VerifyTimeout error when the
	// budget ran out.
	ErrVerifyTimeout = errors.New("mount did not become reachable in time")
	// ErrDriverExited is the cause of a SpawnFailed error when the driver
	// died before the mount appeared.
	ErrDriverExited = errors.New("mount driver exited before the mount appeared")
)

// Error is returned by coordinator operations for every failure in the
// taxonomy. StateChanged separates "nothing happened, retry freely" from
// "something was done and the record is now in Error; run Detect and a
// targeted Unmount".
type Error struct {
	Err          error
	Kind         Kind
	Stage        teardown.Stage
	Letter       drives.Letter
	StateChanged bool
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Letter.Valid() {
		sb.WriteString(" on ")
		sb.WriteString(e.Letter.Device())
	}
	if e.Kind == KindTeardownPartialFailure {
		sb.WriteString(" (reached ")
		sb.WriteString(e.Stage.String())
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err if it is, or wraps, an *Error.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

func unavailable(l drives.Letter, err error) *Error {
	return &Error{Kind: KindLetterUnavailable, Letter: l, Err: err}
}
