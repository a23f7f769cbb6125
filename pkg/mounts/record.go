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

// Package mounts holds the authoritative table of mounts this application
// manages and its persisted snapshot.
package mounts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
)

var (
	// ErrNotFound is returned when no record exists for a letter.
	ErrNotFound = errors.New("mount record not found")
	// ErrRecordActive is returned when removing a record that is still
	// Mounting or Connected. Callers must unmount first.
	ErrRecordActive = errors.New("mount record is active")
	// ErrInvalidRecord is returned by Upsert for incomplete records.
	ErrInvalidRecord = errors.New("invalid mount record")
)

// Status is the lifecycle state of a mount.
type Status int

const (
	StatusDisconnected Status = iota
	StatusMounting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusMounting:
		return "mounting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) Valid() bool {
	return s >= StatusDisconnected && s <= StatusError
}

// Active reports whether the status blocks a new mount or a removal.
func (s Status) Active() bool {
	return s == StatusMounting || s == StatusConnected
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidRecord, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "disconnected":
		*s = StatusDisconnected
	case "mounting":
		*s = StatusMounting
	case "connected":
		*s = StatusConnected
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, text)
	}
	return nil
}

// Record is one managed letter.
type Record struct {
	MountedAt  time.Time     `json:"mounted_at,omitzero"`
	Profile    string        `json:"profile"`
	Resource   string        `json:"resource"`
	LastError  string        `json:"last_error,omitempty"`
	ProcessRef []int32       `json:"process_ref,omitempty"`
	Status     Status        `json:"status"`
	Letter     drives.Letter `json:"letter"`
	// Adopted marks records synthesized from a probe: a mount found on the
	// system that this run did not create.
	Adopted bool `json:"adopted,omitempty"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.ProcessRef = slices.Clone(r.ProcessRef)
	return r
}

// Validate checks the fields every record must carry.
func (r Record) Validate() error {
	if !r.Letter.Valid() {
		return fmt.Errorf("%w: letter %q", ErrInvalidRecord, byte(r.Letter))
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: status %d", ErrInvalidRecord, int(r.Status))
	}
	return nil
}

// RemoteRef is the driver remote string, "profile:resource".
func (r Record) RemoteRef() string {
	return r.Profile + ":" + r.Resource
}
