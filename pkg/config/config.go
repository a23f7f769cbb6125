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

// Package config loads and saves the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const SchemaVersion = 1

// ErrSchemaMismatch is returned by Load for a file written by another
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	SentryDSN      string `toml:"sentry_dsn,omitempty"`
	API            API    `toml:"api"`
	Mounts         Mounts `toml:"mounts"`
	ConfigSchema   int    `toml:"config_schema"`
	DebugLogging   bool   `toml:"debug_logging"`
	ErrorReporting bool   `toml:"error_reporting"`
}

type API struct {
	Listen         string   `toml:"listen" validate:"required,hostname_port"`
	AllowedIPs     []string `toml:"allowed_ips,omitempty" validate:"dive,cidr|ip"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
	Metrics        bool     `toml:"metrics"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	API: API{
		Listen:         DefaultAPIListen,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		Metrics:        true,
	},
	Mounts: Mounts{
		Alphabet:      "R-Z",
		DriverImage:   "rclone.exe",
		CacheMode:     "full",
		LabelKeywords: []string{"rclone", "s3", "bucket", "cloud", "remote"},
		Store:         StoreJSON,
		Timeouts: Timeouts{
			SpawnVerify:      "30s",
			VerifyBackoff:    "250ms",
			MaxVerifyBackoff: "4s",
			VerifyAttempts:   20,
			KillSettle:       "3s",
			DetachSettle:     "1s",
			HintSettle:       "1s",
			RefreshInterval:  "30s",
		},
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config from configDir, or from the path in
// BUCKETDRIVE_CFG, writing defaults first if no file exists.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the config file location.
func (c *Instance) Path() string {
	return c.cfgPath
}

// Load re-reads the file. File values are applied over the defaults, and
// the result must validate before it replaces the current values.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newVals := c.defaults
	newVals.Mounts.LabelKeywords = nil
	newVals.Mounts.ExtraArgs = nil
	newVals.API.AllowedOrigins = nil
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if newVals.Mounts.LabelKeywords == nil {
		newVals.Mounts.LabelKeywords = c.defaults.Mounts.LabelKeywords
	}
	if newVals.API.AllowedOrigins == nil {
		newVals.API.AllowedOrigins = c.defaults.API.AllowedOrigins
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := Validate(&newVals); err != nil {
		return err
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}

func (c *Instance) SentryDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.SentryDSN
}

func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.Listen
}

func (c *Instance) APIAllowedIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.API.AllowedIPs)
}

func (c *Instance) APIAllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.API.AllowedOrigins)
}

func (c *Instance) APIMetrics() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.Metrics
}
