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

//go:build !windows

package drives

import (
	"context"
	"errors"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/command"
)

var errUnsupported = errors.New("drive letters are only supported on windows")

// System reports no volumes outside Windows so the rest of the stack can be
// built and exercised on development machines.
type System struct{}

func NewSystem(_ command.Executor) *System {
	return &System{}
}

func (*System) VolumeExists(Letter) bool {
	return false
}

func (*System) VolumeLabel(Letter) (string, error) {
	return "", errUnsupported
}

func (*System) IsOpticalMedia(Letter) bool {
	return false
}

func (*System) ForceDetach(context.Context, Letter) bool {
	return false
}

func (*System) ReleaseHint(context.Context, Letter) error {
	return errUnsupported
}
