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

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bucketdrive/bucketdrive/pkg/config"
)

// APIClient abstracts API communication for testability.
type APIClient interface {
	// Call executes a JSON-RPC method and decodes the result into out,
	// which may be nil.
	Call(ctx context.Context, method string, params, out any) error
}

// LocalAPIClient implements APIClient against the local service.
type LocalAPIClient struct {
	url string
}

// NewLocalAPIClient creates an APIClient that communicates with the local API.
func NewLocalAPIClient(cfg *config.Instance) *LocalAPIClient {
	return &LocalAPIClient{url: LocalURL(cfg)}
}

// NewAPIClient talks to the service at a websocket URL.
func NewAPIClient(wsURL string) *LocalAPIClient {
	return &LocalAPIClient{url: wsURL}
}

func (c *LocalAPIClient) Call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
	defer cancel()

	raw, err := Call(ctx, c.url, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
