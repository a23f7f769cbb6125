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

// Package driver starts the external mount-driver process that serves a
// remote as a drive letter.
package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
)

// SpawnRequest describes one mount to start.
type SpawnRequest struct {
	// Remote is the driver's remote reference, "profile:resource".
	Remote string
	// VolumeName is shown by the OS as the volume label.
	VolumeName string
	CacheMode  string
	ExtraArgs  []string
	Letter     drives.Letter
}

// Handle is a running driver process. It is only valid for the run that
// spawned it.
type Handle interface {
	PID() int32
	// Exited is closed when the process ends.
	Exited() <-chan struct{}
	// Diagnostic returns the tail of the driver's output, for error reports.
	Diagnostic() string
	Terminate(ctx context.Context) error
	Kill(ctx context.Context) error
}

// Spawner starts driver processes.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (Handle, error)
}

// SpawnError is returned when the driver could not be started. Output holds
// whatever the driver printed, verbatim.
type SpawnError struct {
	Err    error
	Output string
}

func (e *SpawnError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("failed to start mount driver: %v", e.Err)
	}
	return fmt.Sprintf("failed to start mount driver: %v: %s", e.Err, out)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
