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

package config

import "time"

const (
	AppName = "bucketdrive"
	CfgEnv  = "BUCKETDRIVE_CFG"
	CfgFile = "config.toml"
	LogFile = "bucketdrive.log"

	SnapshotFileJSON = "mounts.json"
	SnapshotFileBolt = "mounts.db"

	StoreJSON = "json"
	StoreBolt = "bolt"

	DefaultAPIListen = "127.0.0.1:7498"
)

const (
	// AppEnv overrides the executable path used to locate a portable
	// user directory.
	AppEnv = "BUCKETDRIVE_EXE"
	// UserDir is the portable install directory, next to the executable.
	UserDir = "user"
)

// AppVersion is set at build time with -ldflags.
var AppVersion = "DEVELOPMENT"

// APIRequestTimeout bounds a single local API call. Mount verification can
// take the whole spawn budget, so this sits well above it.
const APIRequestTimeout = 2 * time.Minute
