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

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusText(t *testing.T) {
	t.Parallel()
	for _, s := range []Status{StatusDisconnected, StatusMounting, StatusConnected, StatusError} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	var s Status
	require.ErrorIs(t, s.UnmarshalText([]byte("bogus")), ErrInvalidRecord)
	_, err := Status(42).MarshalText()
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStatusActive(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusMounting.Active())
	assert.True(t, StatusConnected.Active())
	assert.False(t, StatusDisconnected.Active())
	assert.False(t, StatusError.Active())
}

func TestRecordJSONShape(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(connected('V', 1234))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"letter": "V",
		"profile": "p1",
		"resource": "bucket",
		"status": "connected",
		"process_ref": [1234],
		"mounted_at": "2026-03-01T11:00:00Z"
	}`, string(data))

	data, err = json.Marshal(Record{Letter: 'W', Adopted: true, Status: StatusConnected})
	require.NoError(t, err)
	assert.JSONEq(t, `{"letter":"W","profile":"","resource":"","status":"connected","adopted":true}`, string(data))
}

func TestRemoteRef(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "p1:bucket", connected('V').RemoteRef())
}
