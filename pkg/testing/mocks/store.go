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
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock for mounts.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadMounts() ([]mounts.Record, error) {
	args := m.Called()
	records, _ := args.Get(0).([]mounts.Record)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return records, args.Error(1)
}

func (m *MockStore) SaveMounts(records []mounts.Record) error {
	args := m.Called(records)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return args.Error(0)
}
