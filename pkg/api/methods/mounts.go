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
	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/models/requests"
	"github.com/bucketdrive/bucketdrive/pkg/api/validation"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleMounts(env requests.RequestEnv) (any, error) {
	records := env.Coordinator.List()
	resp := models.MountsResponse{Mounts: make([]models.MountResponse, 0, len(records))}
	for _, rec := range records {
		resp.Mounts = append(resp.Mounts, models.NewMountResponse(rec))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleMountsGet(env requests.RequestEnv) (any, error) {
	l, err := letterParam(env)
	if err != nil {
		return nil, err
	}
	rec, err := env.Coordinator.Get(l)
	if err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}
	return models.NewMountResponse(rec), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleMount(env requests.RequestEnv) (any, error) {
	var params models.MountParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}

	req := coordinator.MountRequest{
		Profile:    params.Profile,
		Resource:   params.Resource,
		VolumeName: params.VolumeName,
	}
	if params.Letter != "" {
		l, err := drives.ParseLetter(params.Letter)
		if err != nil {
			return nil, validation.ErrInvalidParams
		}
		req.Letter = l
	}

	log.Info().
		Str("profile", req.Profile).
		Str("resource", req.Resource).
		Str("letter", params.Letter).
		Msg("received mount request")

	rec, err := env.Coordinator.Mount(env.Context, req)
	if err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}
	return models.NewMountResponse(rec), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleUnmount(env requests.RequestEnv) (any, error) {
	l, err := letterParam(env)
	if err != nil {
		return nil, err
	}

	log.Info().Str("letter", l.String()).Msg("received unmount request")
	res, err := env.Coordinator.Unmount(env.Context, l)
	if err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}
	return releaseResponse(res, nil), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleUnmountAll(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received unmount all request")
	batch := env.Coordinator.UnmountAll(env.Context)

	resp := models.UnmountAllResponse{
		Results:   make([]models.ReleaseResponse, 0, len(batch.Results)),
		Succeeded: models.LetterStrings(batch.Succeeded()),
		Failed:    models.LetterStrings(batch.Failed()),
	}
	for _, r := range batch.Results {
		resp.Results = append(resp.Results, releaseResponse(r.Result, r.Err))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRemove(env requests.RequestEnv) (any, error) {
	l, err := letterParam(env)
	if err != nil {
		return nil, err
	}

	log.Info().Str("letter", l.String()).Msg("received remove request")
	if err := env.Coordinator.Remove(l); err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}
	return NoContent{}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleDetect(env requests.RequestEnv) (any, error) {
	detected, err := env.Coordinator.Detect(env.Context)
	if err != nil {
		return nil, err //nolint:wrapcheck // mapped to an error object by the server
	}

	resp := models.DetectResponse{Letters: make([]models.DetectedLetterResponse, 0, len(detected))}
	for _, d := range detected {
		resp.Letters = append(resp.Letters, models.NewDetectedLetterResponse(d))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleLetters(env requests.RequestEnv) (any, error) {
	part := env.Coordinator.Partition()
	return models.LettersResponse{
		Alphabet:       models.LetterStrings(env.Coordinator.Alphabet()),
		Free:           models.LetterStrings(part.Free),
		Registered:     models.LetterStrings(part.Registered),
		SystemOccupied: models.LetterStrings(part.SystemOccupied),
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func letterParam(env requests.RequestEnv) (drives.Letter, error) {
	var params models.LetterParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return 0, err //nolint:wrapcheck // mapped to an error object by the server
	}
	l, err := drives.ParseLetter(params.Letter)
	if err != nil {
		return 0, validation.ErrInvalidParams
	}
	return l, nil
}

func releaseResponse(res teardown.Result, err error) models.ReleaseResponse {
	resp := models.ReleaseResponse{
		Letter:  res.Letter.String(),
		Outcome: res.Outcome.String(),
		Stage:   res.Stage.String(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
