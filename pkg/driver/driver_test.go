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

package driver

import (
	"errors"
	"strings"
	"testing"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  SpawnRequest
		want []string
	}{
		{
			name: "minimal",
			req:  SpawnRequest{Remote: "p1:bucket-a", Letter: drives.MustLetter("Z")},
			want: []string{"mount", "p1:bucket-a", "Z:"},
		},
		{
			name: "full",
			req: SpawnRequest{
				Remote:     "p1:bucket-a",
				Letter:     drives.MustLetter("V"),
				CacheMode:  "full",
				VolumeName: "p1 bucket-a",
				ExtraArgs:  []string{"--network-mode"},
			},
			want: []string{
				"mount", "p1:bucket-a", "V:",
				"--vfs-cache-mode", "full",
				"--volname", "p1 bucket-a",
				"--network-mode",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Args(tt.req))
		})
	}
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	t.Parallel()
	buf := newTailBuffer(8)

	n, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "23456789", buf.String())

	_, _ = buf.Write([]byte("ab"))
	assert.Equal(t, "456789ab", buf.String())
}

func TestSpawnErrorMessage(t *testing.T) {
	t.Parallel()
	cause := errors.New("exit status 1")

	err := &SpawnError{Err: cause, Output: "  CRITICAL: config not found\n"}
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to start mount driver: exit status 1: CRITICAL: config not found", err.Error())

	bare := &SpawnError{Err: cause}
	assert.False(t, strings.HasSuffix(bare.Error(), ": "))
}
