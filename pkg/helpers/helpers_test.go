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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:paralleltest // replaces the global logger
func TestInitLogging(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	require.NoError(t, InitLogging(dir, false, &buf))

	log.Info().Str("letter", "V").Msg("mounted")

	assert.Contains(t, buf.String(), `"letter":"V"`)
	data, err := os.ReadFile(filepath.Join(dir, config.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mounted")
	assert.NotNil(t, LogWriter())
}

func TestFindUserDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup  func(t *testing.T, dir string)
		name   string
		wantOK bool
	}{
		{
			name:   "no user dir",
			setup:  func(*testing.T, string) {},
			wantOK: false,
		},
		{
			name: "user dir present",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Mkdir(filepath.Join(dir, config.UserDir), 0o750))
			},
			wantOK: true,
		},
		{
			name: "user is a file",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, config.UserDir), nil, 0o600))
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			tt.setup(t, dir)

			got, ok := findUserDir(filepath.Join(dir, "bucketdrive.exe"))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, filepath.Join(dir, config.UserDir), got)
			}
		})
	}
}

func TestDirsAreAppScoped(t *testing.T) {
	t.Parallel()

	if _, ok := HasUserDir(); ok {
		t.Skip("portable install detected")
	}
	assert.Equal(t, config.AppName, filepath.Base(ConfigDir()))
	assert.Equal(t, config.AppName, filepath.Base(DataDir()))
	assert.Equal(t, "logs", filepath.Base(LogDir()))
}
