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

package procprobe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/bucketdrive/bucketdrive/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newProbe(volumes *helpers.FakeVolumes, procs *helpers.FakeProcesses) *procprobe.Probe {
	alphabet, err := drives.ParseAlphabet("V-Z")
	if err != nil {
		panic(err)
	}
	return procprobe.New(procprobe.Config{
		ImageName:     helpers.DriverImage,
		LabelKeywords: []string{"rclone", "bucket"},
		Alphabet:      alphabet,
	}, procs, volumes)
}

func TestProcessesForLetter(t *testing.T) {
	t.Parallel()
	volumes := helpers.NewFakeVolumes()
	procs := helpers.NewFakeProcesses(volumes)
	procs.Add(helpers.FakeProcess{PID: 1234, Cmdline: "rclone.exe mount remote:bucket-a V: --vfs-cache-mode full"})
	probe := newProbe(volumes, procs)
	ctx := context.Background()

	pids, err := probe.ProcessesForLetter(ctx, 'V')
	require.NoError(t, err)
	assert.Equal(t, []int32{1234}, pids)

	pids, err = probe.ProcessesForLetter(ctx, 'W')
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	volumes := helpers.NewFakeVolumes()
	procs := helpers.NewFakeProcesses(volumes)
	procs.AddDriver(10, 'V')
	procs.AddDriver(11, 'V')
	procs.AddDriver(12, 'X')
	procs.Add(helpers.FakeProcess{PID: 13, Cmdline: "rclone.exe serve webdav remote:"})
	procs.Add(helpers.FakeProcess{PID: 14, Unreadable: true})
	procs.Add(helpers.FakeProcess{PID: 15, Image: "explorer.exe", Cmdline: "explorer.exe V:"})
	probe := newProbe(volumes, procs)

	snap, err := probe.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int32{10, 11}, snap.ForLetter('V'))
	assert.Equal(t, []int32{12}, snap.ForLetter('X'))
	assert.Empty(t, snap.ForLetter('W'))
	assert.Equal(t, drives.Alphabet{'V', 'X'}, snap.Letters())
	assert.Equal(t, []int32{14}, snap.Unknown)
	assert.Equal(t, []int32{10, 11, 12, 13, 14}, snap.All)
}

func TestSnapshotProbeUnavailable(t *testing.T) {
	t.Parallel()
	volumes := helpers.NewFakeVolumes()
	procs := helpers.NewFakeProcesses(volumes)
	procs.SetListError(errors.New("access denied"))
	probe := newProbe(volumes, procs)

	_, err := probe.Snapshot(context.Background())
	require.ErrorIs(t, err, procprobe.ErrProbeUnavailable)

	_, err = probe.Classify(context.Background())
	require.ErrorIs(t, err, procprobe.ErrProbeUnavailable)
}

func TestClassifyPriorities(t *testing.T) {
	t.Parallel()
	volumes := helpers.NewFakeVolumes()
	procs := helpers.NewFakeProcesses(volumes)

	// V: live process, volume still coming up
	procs.Add(helpers.FakeProcess{PID: 1, Letter: 'V', Cmdline: helpers.DriverCmdline("r:a", 'V')})
	// W: label keyword
	volumes.Mount('W', "My Bucket")
	// X: reserved range fallback
	volumes.Mount('X', "DATA")
	// Y: optical media is never ours
	volumes.Mount('Y', "DVD")
	volumes.SetOptical('Y')
	// Z: empty

	probe := newProbe(volumes, procs)
	got, err := probe.Classify(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, procprobe.Classification{Letter: 'V', Reason: procprobe.ReasonProcess, PIDs: []int32{1}}, got[0])
	assert.Equal(t, procprobe.Classification{
		Letter: 'W', Reason: procprobe.ReasonLabel, Mounted: true, Label: "My Bucket",
	}, got[1])
	assert.Equal(t, procprobe.Classification{
		Letter: 'X', Reason: procprobe.ReasonReservedRange, Mounted: true, Label: "DATA",
	}, got[2])
}

func TestClassifyIgnoresLettersOutsideAlphabet(t *testing.T) {
	t.Parallel()
	volumes := helpers.NewFakeVolumes()
	procs := helpers.NewFakeProcesses(volumes)
	procs.AddDriver(1, 'C')

	got, err := newProbe(volumes, procs).Classify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPropertyClassifyIdempotent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		volumes := helpers.NewFakeVolumes()
		procs := helpers.NewFakeProcesses(volumes)
		for i, l := range []drives.Letter{'V', 'W', 'X', 'Y', 'Z'} {
			switch rapid.IntRange(0, 3).Draw(rt, "state"+l.String()) {
			case 1:
				procs.AddDriver(int32(100+i), l)
			case 2:
				volumes.Mount(l, rapid.SampledFrom([]string{"", "rclone", "DATA"}).Draw(rt, "label"))
			case 3:
				volumes.Mount(l, "DVD")
				volumes.SetOptical(l)
			}
		}
		probe := newProbe(volumes, procs)

		first, err := probe.Classify(context.Background())
		if err != nil {
			rt.Fatal(err)
		}
		second, err := probe.Classify(context.Background())
		if err != nil {
			rt.Fatal(err)
		}
		assert.Equal(rt, first, second)
	})
}
