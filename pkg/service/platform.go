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

package service

import (
	"fmt"

	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/driver"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/command"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/rs/zerolog/log"
)

// Platform is the OS surface the coordinator drives.
type Platform struct {
	Volumes  drives.VolumeInspector
	Detacher drives.Detacher
	Lister   procprobe.Lister
	Signaler procprobe.Signaler
	Spawner  driver.Spawner
	// Watcher is optional. Without it the table only follows the OS on
	// the refresh interval.
	Watcher drives.VolumeWatcher
}

// SystemPlatform builds the real OS layer. Driver logs go to logDir.
func SystemPlatform(cfg *config.Instance, logDir string) (*Platform, error) {
	cmd := &command.RealExecutor{Options: command.StartOptions{HideWindow: true}}
	volumes := drives.NewSystem(cmd)
	procs := procprobe.NewSystem(cmd)

	alphabet := cfg.Alphabet()
	if len(alphabet) == 0 {
		return nil, fmt.Errorf("no usable drive letters configured in %s", cfg.Path())
	}

	watcher, err := drives.NewVolumeWatcher(alphabet, volumes)
	if err != nil {
		log.Warn().Err(err).Msg("volume notifications unavailable, relying on refresh interval")
		watcher = nil
	}

	log.Info().
		Str("driver", cfg.DriverPath()).
		Str("alphabet", alphabet.String()).
		Msg("using system platform")

	return &Platform{
		Volumes:  volumes,
		Detacher: volumes,
		Lister:   procs,
		Signaler: procs,
		Spawner: driver.NewRclone(driver.RcloneConfig{
			Path:   cfg.DriverPath(),
			LogDir: logDir,
		}, procs),
		Watcher: watcher,
	}, nil
}
