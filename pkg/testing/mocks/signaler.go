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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSignaler is a testify mock for procprobe.Signaler.
type MockSignaler struct {
	mock.Mock
}

func (m *MockSignaler) Terminate(ctx context.Context, pid int32) error {
	args := m.Called(ctx, pid)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return args.Error(0)
}

func (m *MockSignaler) Kill(ctx context.Context, pid int32) error {
	args := m.Called(ctx, pid)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return args.Error(0)
}
