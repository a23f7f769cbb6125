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

package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	NotificationMountsChanged = "mounts.changed"
	NotificationMountsRemoved = "mounts.removed"
)

const (
	MethodMounts           = "mounts"
	MethodMountsGet        = "mounts.get"
	MethodMountsMount      = "mounts.mount"
	MethodMountsUnmount    = "mounts.unmount"
	MethodMountsUnmountAll = "mounts.unmount_all"
	MethodMountsRemove     = "mounts.remove"
	MethodMountsDetect     = "mounts.detect"
	MethodLetters          = "letters"
	MethodSettings         = "settings"
	MethodSettingsUpdate   = "settings.update"
	MethodSettingsReload   = "settings.reload"
	MethodVersion          = "version"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uuid.UUID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ErrorData carries the mount failure classification so clients can act
// on it without parsing messages.
type ErrorData struct {
	Kind         string `json:"kind,omitempty"`
	Letter       string `json:"letter,omitempty"`
	Stage        string `json:"stage,omitempty"`
	StateChanged bool   `json:"stateChanged"`
}

type ErrorObject struct {
	Data    *ErrorData `json:"data,omitempty"`
	Message string     `json:"message"`
	Code    int        `json:"code"`
}

type ResponseObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ResponseErrorObject exists for sending errors, so we can omit result from
// the response, but so nil responses are still returned when using the main
// ResponseObject.
type ResponseErrorObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Error   *ErrorObject `json:"error"`
}
