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

package requests

import (
	"context"
	"encoding/json"

	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/google/uuid"
)

type RequestEnv struct {
	Context     context.Context
	Config      *config.Instance
	Coordinator *coordinator.Coordinator
	OnReload    func()
	Params      json.RawMessage
	ID          uuid.UUID
	IsLocal     bool
}
