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

package coordinator_test

import (
	"context"
	"testing"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"pgregory.net/rapid"
)

// TestPropertyMountUniqueness drives random operation sequences and checks
// that a letter is never handed to two live mounts at once.
func TestPropertyMountUniqueness(t *testing.T) {
	t.Parallel()
	letters := []drives.Letter{0, letterV, letterW, letterX, letterY, letterZ}

	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		ctx := context.Background()
		live := make(map[drives.Letter]bool)

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for range steps {
			l := rapid.SampledFrom(letters).Draw(rt, "letter")
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0, 1:
				req := mountReq()
				req.Letter = l
				rec, err := f.coord.Mount(ctx, req)
				if err == nil {
					if live[rec.Letter] {
						rt.Fatalf("%s mounted twice", rec.Letter)
					}
					live[rec.Letter] = true
				}
			case 2:
				if !l.Valid() {
					continue
				}
				if res, err := f.coord.Unmount(ctx, l); err == nil && res.OK() {
					delete(live, l)
				}
			case 3:
				if l.Valid() {
					_ = f.coord.Remove(l)
				}
			}

			active := make(map[drives.Letter]bool)
			for _, rec := range f.coord.List() {
				if rec.Status.Active() {
					active[rec.Letter] = true
				}
				if rec.Status == mounts.StatusConnected && !f.volumes.VolumeExists(rec.Letter) {
					rt.Fatalf("%s connected but not reachable", rec.Letter)
				}
			}
			if len(active) != len(live) {
				rt.Fatalf("registry has %d active records, expected %d", len(active), len(live))
			}
			for l := range live {
				if !active[l] {
					rt.Fatalf("%s missing from registry", l)
				}
			}
		}
	})
}
