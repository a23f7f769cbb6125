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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		listen string
		want   string
	}{
		{listen: "127.0.0.1:7498", want: "ws://127.0.0.1:7498/api"},
		{listen: "0.0.0.0:7498", want: "ws://localhost:7498/api"},
		{listen: ":7498", want: "ws://localhost:7498/api"},
		{listen: "[::]:9000", want: "ws://localhost:9000/api"},
		{listen: "[::1]:9000", want: "ws://[::1]:9000/api"},
		{listen: "7498", want: "ws://localhost:7498/api"},
	}

	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, URL(tt.listen))
		})
	}
}

func TestRPCErrorKind(t *testing.T) {
	t.Parallel()

	plain := &RPCError{Code: models.ErrCodeInternal, Message: "boom"}
	assert.Equal(t, "boom", plain.Error())
	assert.Empty(t, plain.Kind())

	kinded := &RPCError{
		Code:    models.ErrCodeVerifyTimeout,
		Message: "verify timed out",
		Data:    &models.ErrorData{Kind: "verify_timeout", Letter: "Z", StateChanged: true},
	}
	assert.Equal(t, "verify_timeout", kinded.Kind())
}

// echoServer answers every request with handler's result.
func echoServer(t *testing.T, handler func(req models.RequestObject) any) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var req models.RequestObject
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := handler(req)
			if resp == nil {
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + apiPath
}

func TestCallDecodesResult(t *testing.T) {
	t.Parallel()

	url := echoServer(t, func(req models.RequestObject) any {
		return models.ResponseObject{
			JSONRPC: "2.0",
			ID:      *req.ID,
			Result:  models.VersionResponse{Version: "1.2.3", OS: "windows", Arch: "amd64"},
		}
	})

	var out models.VersionResponse
	err := NewAPIClient(url).Call(context.Background(), models.MethodVersion, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", out.Version)
}

func TestCallReturnsRPCError(t *testing.T) {
	t.Parallel()

	url := echoServer(t, func(req models.RequestObject) any {
		return models.ResponseErrorObject{
			JSONRPC: "2.0",
			ID:      *req.ID,
			Error: &models.ErrorObject{
				Code:    models.ErrCodeLetterUnavailable,
				Message: "letter unavailable",
				Data:    &models.ErrorData{Kind: "letter_unavailable", Letter: "X"},
			},
		}
	})

	err := NewAPIClient(url).Call(context.Background(), models.MethodMountsMount, models.MountParams{
		Profile:  "s3",
		Resource: "b",
	}, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, models.ErrCodeLetterUnavailable, rpcErr.Code)
	assert.Equal(t, "letter_unavailable", rpcErr.Kind())
	assert.Equal(t, "X", rpcErr.Data.Letter)
}

func TestCallHonoursContext(t *testing.T) {
	t.Parallel()

	// never answers
	url := echoServer(t, func(models.RequestObject) any { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, url, models.MethodMounts, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestTimeout) || errors.Is(err, ErrRequestCancelled), "got %v", err)
}
