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

package helpers

import (
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
)

// FastTimeouts keeps verification and teardown settles in the millisecond
// range for tests.
func FastTimeouts() coordinator.Timeouts {
	return coordinator.Timeouts{
		SpawnVerify:      2 * time.Second,
		VerifyBackoff:    time.Millisecond,
		MaxVerifyBackoff: 10 * time.Millisecond,
		VerifyAttempts:   500,
		Teardown: teardown.Timeouts{
			KillSettle:   time.Millisecond,
			DetachSettle: time.Millisecond,
			HintSettle:   time.Millisecond,
		},
	}
}

// Stack is a coordinator wired to the fake OS layer.
type Stack struct {
	Volumes     *FakeVolumes
	Procs       *FakeProcesses
	Spawner     *FakeSpawner
	Coordinator *coordinator.Coordinator
}

// NewStack builds a coordinator over alphabet with no store. notifier may
// be nil.
func NewStack(alphabet string, notifier coordinator.Notifier) *Stack {
	volumes := NewFakeVolumes()
	procs := NewFakeProcesses(volumes)
	spawner := NewFakeSpawner(procs)
	return &Stack{
		Volumes: volumes,
		Procs:   procs,
		Spawner: spawner,
		Coordinator: coordinator.New(coordinator.Config{
			Alphabet:      drives.MustParseAlphabet(alphabet),
			DriverImage:   DriverImage,
			CacheMode:     "full",
			LabelKeywords: []string{"rclone"},
			Timeouts:      FastTimeouts(),
		}, coordinator.Deps{
			Volumes:  volumes,
			Detacher: volumes,
			Lister:   procs,
			Signaler: procs,
			Spawner:  spawner,
			Notifier: notifier,
		}),
	}
}
