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
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/bucketdrive/bucketdrive/pkg/config"
)

// portableRoot is resolved once; the executable does not move while running.
var portableRoot = sync.OnceValues(func() (string, bool) {
	return findUserDir(os.Getenv(config.AppEnv))
})

// HasUserDir reports the "user" directory next to the executable, if any.
// A portable install keeps config, data and logs under it instead of the
// XDG locations.
func HasUserDir() (string, bool) {
	return portableRoot()
}

func findUserDir(exePath string) (string, bool) {
	if exePath == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", false
		}
		exePath = exe
	}
	dir := filepath.Join(filepath.Dir(exePath), config.UserDir)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, true
	}
	return "", false
}

// appDir places sub under the portable root, or under base/<app> otherwise.
func appDir(base string, sub ...string) string {
	root, ok := HasUserDir()
	if !ok {
		root = filepath.Join(base, config.AppName)
	}
	return filepath.Join(append([]string{root}, sub...)...)
}

func ConfigDir() string { return appDir(xdg.ConfigHome) }

// DataDir holds the mount snapshot.
func DataDir() string { return appDir(xdg.DataHome) }

// LogDir holds the application log and the per-letter driver logs.
func LogDir() string { return appDir(xdg.StateHome, "logs") }
