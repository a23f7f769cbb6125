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

package drives_test

import (
	"testing"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/testing/helpers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan drives.VolumeEvent) drives.VolumeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for volume event")
		return drives.VolumeEvent{}
	}
}

func TestPollingWatcherReportsChanges(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	volumes := helpers.NewFakeVolumes()
	volumes.Mount('W', "rclone")

	w := drives.NewPollingWatcher(drives.Alphabet{'V', 'W'}, volumes,
		drives.WithClock(clock), drives.WithPollInterval(time.Second))
	require.NoError(t, w.Start())
	defer w.Stop()

	volumes.Mount('V', "rclone")
	volumes.Unmount('W')
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Second)

	assert.Equal(t, drives.VolumeEvent{Letter: 'V', Type: drives.VolumeArrived}, receive(t, w.Events()))
	assert.Equal(t, drives.VolumeEvent{Letter: 'W', Type: drives.VolumeRemoved}, receive(t, w.Events()))
}

func TestPollingWatcherIgnoresOtherLetters(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	volumes := helpers.NewFakeVolumes()

	w := drives.NewPollingWatcher(drives.Alphabet{'V'}, volumes, drives.WithClock(clock))
	require.NoError(t, w.Start())

	volumes.Mount('C', "Windows")
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(drives.DefaultPollInterval)

	w.Stop()
	_, open := <-w.Events()
	assert.False(t, open, "no event expected and channel closed on stop")
}

func TestPollingWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()
	w := drives.NewPollingWatcher(drives.Alphabet{'V'}, helpers.NewFakeVolumes(),
		drives.WithClock(clockwork.NewFakeClock()))
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}
