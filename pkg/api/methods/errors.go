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
	"errors"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/validation"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
)

var kindCodes = map[coordinator.Kind]int{
	coordinator.KindLetterUnavailable:      models.ErrCodeLetterUnavailable,
	coordinator.KindSpawnFailed:            models.ErrCodeSpawnFailed,
	coordinator.KindVerifyTimeout:          models.ErrCodeVerifyTimeout,
	coordinator.KindTeardownPartialFailure: models.ErrCodeTeardownPartialFailure,
	coordinator.KindProbeUnavailable:       models.ErrCodeProbeUnavailable,
}

// ErrorObject maps a handler error onto a JSON-RPC error. Coordinator
// failures keep their kind, letter and stage in the error data.
func ErrorObject(err error) models.ErrorObject {
	var ce *coordinator.Error
	if errors.As(err, &ce) {
		code, ok := kindCodes[ce.Kind]
		if !ok {
			code = models.ErrCodeServer
		}
		data := &models.ErrorData{
			Kind:         ce.Kind.String(),
			StateChanged: ce.StateChanged,
		}
		if ce.Letter.Valid() {
			data.Letter = ce.Letter.String()
		}
		if ce.Stage != teardown.StageNone {
			data.Stage = ce.Stage.String()
		}
		return models.ErrorObject{Code: code, Message: err.Error(), Data: data}
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams),
		errors.Is(err, coordinator.ErrInvalidRequest):
		return models.ErrorObject{Code: models.ErrCodeInvalidParams, Message: err.Error()}
	case errors.Is(err, mounts.ErrNotFound):
		return models.ErrorObject{Code: models.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, mounts.ErrRecordActive):
		return models.ErrorObject{Code: models.ErrCodeRecordActive, Message: err.Error()}
	default:
		return models.ErrorObject{Code: models.ErrCodeServer, Message: err.Error()}
	}
}
