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

package mounts

// Store persists the registry snapshot between runs.
type Store interface {
	// LoadMounts returns the persisted records. A store that has never been
	// written returns no records and no error.
	LoadMounts() ([]Record, error)
	// SaveMounts replaces the persisted records atomically.
	SaveMounts(records []Record) error
	Close() error
}

// snapshotFile is the on-disk JSON document.
type snapshotFile struct {
	Mounts  []Record `json:"mounts"`
	Version int      `json:"version"`
}

const snapshotVersion = 1
