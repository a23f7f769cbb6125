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

package methods

import (
	"runtime"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/models/requests"
	"github.com/bucketdrive/bucketdrive/pkg/api/validation"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/rs/zerolog/log"
)

type NoContent struct{}

//nolint:gocritic // single-use parameter in API handler
func HandleVersion(_ requests.RequestEnv) (any, error) {
	return models.VersionResponse{
		Version: config.AppVersion,
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettings(env requests.RequestEnv) (any, error) {
	return models.SettingsResponse{
		Alphabet:     env.Coordinator.Alphabet().String(),
		DriverImage:  env.Config.DriverImage(),
		CacheMode:    env.Config.CacheMode(),
		Store:        env.Config.Store(),
		DebugLogging: env.Config.DebugLogging(),
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}

	if params.DebugLogging != nil {
		log.Info().Bool("debugLogging", *params.DebugLogging).Msg("update")
		env.Config.SetDebugLogging(*params.DebugLogging)
		if err := env.Config.Save(); err != nil {
			return nil, err //nolint:wrapcheck // mapped to an error object by the server
		}
	}

	return NoContent{}, nil
}

// HandleSettingsReload re-reads the config file. Timeouts apply through the
// reload hook; alphabet and driver changes need a restart.
//
//nolint:gocritic // single-use parameter in API handler
func HandleSettingsReload(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings reload request")
	if err := env.Config.Load(); err != nil {
		log.Error().Err(err).Msg("error loading settings")
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}
	if env.OnReload != nil {
		env.OnReload()
	}
	return NoContent{}, nil
}
