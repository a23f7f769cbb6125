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
	"encoding/json"
	"fmt"

	"github.com/stretchr/testify/mock"
)

// MockAPIClient is a testify mock for client.APIClient. Expectations return
// (result, error); a non-nil result is round-tripped through JSON into out,
// the same way a real response would be decoded.
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Call(ctx context.Context, method string, params, out any) error {
	args := m.Called(ctx, method, params)
	if err := args.Error(1); err != nil {
		//nolint:wrapcheck // Mock returns are already wrapped by caller
		return err
	}
	result := args.Get(0)
	if out == nil || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("mock result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("mock result: %w", err)
	}
	return nil
}
