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

import "context"

// VolumeInspector answers questions about the OS view of a drive letter.
// Implementations must not return errors for "not there"; absence is a
// normal answer.
type VolumeInspector interface {
	// VolumeExists reports whether the letter's root currently resolves.
	VolumeExists(l Letter) bool
	// VolumeLabel returns the volume label, or "" if it has none.
	VolumeLabel(l Letter) (string, error)
	// IsOpticalMedia reports whether the letter belongs to a CD/DVD drive.
	IsOpticalMedia(l Letter) bool
}

// Detacher removes a letter from the OS without going through the process
// that serves it.
type Detacher interface {
	// ForceDetach asks the OS to drop the letter's volume mapping. Returns
	// true if the OS accepted the request; the caller still verifies.
	ForceDetach(ctx context.Context, l Letter) bool
	// ReleaseHint sends a best-effort filesystem release (dismount) request.
	ReleaseHint(ctx context.Context, l Letter) error
}

// VolumeEventType describes what happened to a volume.
type VolumeEventType int

const (
	VolumeArrived VolumeEventType = iota + 1
	VolumeRemoved
)

func (t VolumeEventType) String() string {
	switch t {
	case VolumeArrived:
		return "arrived"
	case VolumeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// VolumeEvent is emitted by a VolumeWatcher when a letter appears or goes away.
type VolumeEvent struct {
	Letter Letter
	Type   VolumeEventType
}

// VolumeWatcher provides OS volume change notifications. Implementations are
// event driven where the platform allows it.
type VolumeWatcher interface {
	// Events returns a channel closed when Stop is called.
	Events() <-chan VolumeEvent
	Start() error
	Stop()
}
