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

// JSON-RPC error codes. The -32000 range is reserved for implementation
// defined server errors; mount failures each get their own code.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000

	ErrCodeLetterUnavailable      = -32001
	ErrCodeSpawnFailed            = -32002
	ErrCodeVerifyTimeout          = -32003
	ErrCodeTeardownPartialFailure = -32004
	ErrCodeProbeUnavailable       = -32005
	ErrCodeNotFound               = -32010
	ErrCodeRecordActive           = -32011
	ErrCodeRateLimited            = -32029
)
