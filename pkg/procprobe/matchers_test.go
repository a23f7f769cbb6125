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

package procprobe

import (
	"testing"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/stretchr/testify/assert"
)

func TestLetterArgMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmdline string
		letter  string
		want    bool
	}{
		{name: "plain token", cmdline: "rclone mount remote:bucket V:", letter: "V", want: true},
		{name: "leading space token", cmdline: `rclone.exe mount s3:data V: --vfs-cache-mode full`, letter: "V", want: true},
		{name: "other letter", cmdline: "rclone mount remote:bucket V:", letter: "W", want: false},
		{name: "trailing backslash", cmdline: `rclone mount r:b V:\ --volname x`, letter: "V", want: true},
		{name: "quoted", cmdline: `rclone mount "r:my bucket" "V:"`, letter: "V", want: true},
		{name: "flag value", cmdline: `rclone mount r:b --mountpoint=V:`, letter: "V", want: true},
		{name: "lowercase", cmdline: `rclone mount r:b v:`, letter: "V", want: true},
		{name: "path prefix", cmdline: `"C:\Program Files\rclone\rclone.exe" mount r:b V:`, letter: "C", want: false},
		{name: "remote name ending in letter", cmdline: `rclone mount mybucketV: X:`, letter: "V", want: false},
		{name: "path continues", cmdline: `rclone mount r:b V:\mnt`, letter: "V", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewLetterArgMatcher(drives.MustLetter(tt.letter))
			assert.Equal(t, tt.want, m.Match(ProcessInfo{Cmdline: tt.cmdline}))
		})
	}
}

func TestImageMatcher(t *testing.T) {
	t.Parallel()
	m := NewImageMatcher("rclone.exe")

	assert.True(t, m.Match(ProcessInfo{Name: "rclone.exe"}))
	assert.True(t, m.Match(ProcessInfo{Name: "RCLONE.EXE"}))
	assert.True(t, m.Match(ProcessInfo{Name: "rclone"}))
	assert.True(t, m.Match(ProcessInfo{Name: `C:\tools\rclone.exe`}))
	assert.False(t, m.Match(ProcessInfo{Name: "rclone-browser.exe"}))
}

func TestAndMatcher(t *testing.T) {
	t.Parallel()
	m := NewAndMatcher(
		NewImageMatcher("rclone"),
		NewLetterArgMatcher('V'),
		MatcherFunc(func(p ProcessInfo) bool { return p.PID > 0 }),
	)

	assert.True(t, m.Match(ProcessInfo{Name: "rclone.exe", Cmdline: "rclone mount r:b V:", PID: 10}))
	assert.False(t, m.Match(ProcessInfo{Name: "rclone.exe", Cmdline: "rclone mount r:b V:", PID: 0}))
	assert.False(t, m.Match(ProcessInfo{Name: "explorer.exe", Cmdline: "rclone mount r:b V:", PID: 10}))
}

func TestLabelMatcher(t *testing.T) {
	t.Parallel()
	m := NewLabelMatcher([]string{"rclone", " S3 ", ""})

	assert.True(t, m.MatchLabel("rclone remote"))
	assert.True(t, m.MatchLabel("My s3 Bucket"))
	assert.False(t, m.MatchLabel("Local Disk"))
	assert.False(t, m.MatchLabel(""))
}
