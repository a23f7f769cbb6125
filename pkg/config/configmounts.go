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

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/rs/zerolog/log"
)

type Mounts struct {
	Alphabet      string   `toml:"alphabet" validate:"required,alphabet"`
	DriverImage   string   `toml:"driver_image" validate:"required,excludesall=/\\"`
	DriverPath    string   `toml:"driver_path,omitempty"`
	CacheMode     string   `toml:"cache_mode" validate:"omitempty,oneof=off minimal writes full"`
	Store         string   `toml:"store" validate:"oneof=json bolt"`
	SnapshotFile  string   `toml:"snapshot_file,omitempty"`
	ExtraArgs     []string `toml:"extra_args,omitempty"`
	LabelKeywords []string `toml:"label_keywords,omitempty"`
	Timeouts      Timeouts `toml:"timeouts"`
	// UnmountOnExit releases every managed letter when the service stops.
	// Off by default: mounts outlive the service and are re-adopted on the
	// next start.
	UnmountOnExit bool `toml:"unmount_on_exit,omitempty"`
}

// Timeouts holds durations as strings ("30s", "250ms") so the file stays
// readable.
type Timeouts struct {
	SpawnVerify      string `toml:"spawn_verify" validate:"required,duration"`
	VerifyBackoff    string `toml:"verify_backoff" validate:"required,duration"`
	MaxVerifyBackoff string `toml:"max_verify_backoff" validate:"required,duration"`
	KillSettle       string `toml:"kill_settle" validate:"required,duration"`
	DetachSettle     string `toml:"detach_settle" validate:"required,duration"`
	HintSettle       string `toml:"hint_settle" validate:"required,duration"`
	RefreshInterval  string `toml:"refresh_interval" validate:"required,duration"`
	VerifyAttempts   int    `toml:"verify_attempts" validate:"gte=1,lte=1000"`
}

// MountTimeouts is Timeouts parsed.
type MountTimeouts struct {
	SpawnVerify      time.Duration
	VerifyBackoff    time.Duration
	MaxVerifyBackoff time.Duration
	KillSettle       time.Duration
	DetachSettle     time.Duration
	HintSettle       time.Duration
	RefreshInterval  time.Duration
	VerifyAttempts   int
}

// Alphabet returns the candidate letters. Values are validated on load, so
// a parse failure here means the defaults themselves are broken.
func (c *Instance) Alphabet() drives.Alphabet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, err := drives.ParseAlphabet(c.vals.Mounts.Alphabet)
	if err != nil {
		log.Error().Err(err).Str("alphabet", c.vals.Mounts.Alphabet).Msg("invalid alphabet")
		return nil
	}
	return a
}

func (c *Instance) DriverImage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Mounts.DriverImage
}

// DriverPath returns the driver executable to spawn, falling back to the
// image name resolved through PATH.
func (c *Instance) DriverPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Mounts.DriverPath != "" {
		return c.vals.Mounts.DriverPath
	}
	return c.vals.Mounts.DriverImage
}

func (c *Instance) CacheMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Mounts.CacheMode
}

func (c *Instance) ExtraArgs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.Mounts.ExtraArgs)
}

func (c *Instance) LabelKeywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.Mounts.LabelKeywords)
}

func (c *Instance) Store() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Mounts.Store
}

// SnapshotPath returns where the mount snapshot lives. Relative paths are
// resolved against dataDir.
func (c *Instance) SnapshotPath(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.vals.Mounts.SnapshotFile
	if path == "" {
		if c.vals.Mounts.Store == StoreBolt {
			path = SnapshotFileBolt
		} else {
			path = SnapshotFileJSON
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

func (c *Instance) SetAlphabet(alphabet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := drives.ParseAlphabet(alphabet); err != nil {
		return err //nolint:wrapcheck // parse errors already name the input
	}
	c.vals.Mounts.Alphabet = alphabet
	return nil
}

func (c *Instance) UnmountOnExit() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Mounts.UnmountOnExit
}

// MountTimeouts returns the parsed timeouts.
func (c *Instance) MountTimeouts() MountTimeouts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.vals.Mounts.Timeouts
	return MountTimeouts{
		SpawnVerify:      parseDuration(t.SpawnVerify),
		VerifyBackoff:    parseDuration(t.VerifyBackoff),
		MaxVerifyBackoff: parseDuration(t.MaxVerifyBackoff),
		KillSettle:       parseDuration(t.KillSettle),
		DetachSettle:     parseDuration(t.DetachSettle),
		HintSettle:       parseDuration(t.HintSettle),
		RefreshInterval:  parseDuration(t.RefreshInterval),
		VerifyAttempts:   t.VerifyAttempts,
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warn().Err(err).Str("value", s).Msg("invalid duration in config")
		return 0
	}
	return d
}
