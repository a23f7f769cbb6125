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
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeCases(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"json": func(*testing.T) Store {
			return NewJSONStore(afero.NewMemMapFs(), "/state/mounts.json")
		},
		"bolt": func(t *testing.T) Store {
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "mounts.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreEmpty(t *testing.T) {
	t.Parallel()
	for name, open := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			records, err := open(t).LoadMounts()
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	t.Parallel()
	for name, open := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			require.NoError(t, s.SaveMounts([]Record{connected('V', 1), connected('W', 2)}))
			require.NoError(t, s.SaveMounts([]Record{connected('X', 3)}))

			records, err := s.LoadMounts()
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, connected('X', 3), records[0])

			require.NoError(t, s.SaveMounts(nil))
			records, err = s.LoadMounts()
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestJSONStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	s := NewJSONStore(fs, "/state/mounts.json")
	require.NoError(t, s.SaveMounts([]Record{connected('V', 1)}))

	entries, err := afero.ReadDir(fs, "/state")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mounts.json", entries[0].Name())
}

func TestJSONStoreKeepsPreviousSnapshotOnCorruptWrite(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	s := NewJSONStore(fs, "/state/mounts.json")
	require.NoError(t, s.SaveMounts([]Record{connected('V', 1)}))

	// a failed write to a read-only fs must not touch the existing file
	ro := NewJSONStore(afero.NewReadOnlyFs(fs), "/state/mounts.json")
	require.Error(t, ro.SaveMounts([]Record{connected('W', 2)}))

	records, err := s.LoadMounts()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, connected('V', 1).Letter, records[0].Letter)
}

func TestJSONStoreRejectsGarbage(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/state/mounts.json", []byte("{not json"), 0o600))

	_, err := NewJSONStore(fs, "/state/mounts.json").LoadMounts()
	require.Error(t, err)
}

func TestJSONStoreRejectsNewerVersion(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/state/mounts.json", []byte(`{"version":99,"mounts":[]}`), 0o600))

	_, err := NewJSONStore(fs, "/state/mounts.json").LoadMounts()
	require.ErrorContains(t, err, "newer")
}
