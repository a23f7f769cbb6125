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

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api"
	"github.com/bucketdrive/bucketdrive/pkg/api/client"
	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/notifications"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/testing/helpers"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	stack  *helpers.Stack
	server *httptest.Server
	url    string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)

	ns := make(chan models.Notification, 16)
	stack := helpers.NewStack("V-Z", notifications.NewNotifier(ns))

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bucketdrive_test_total",
		Help: "test counter",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(api.NewRouter(ctx, api.Deps{
		Config:        cfg,
		Coordinator:   stack.Coordinator,
		Notifications: ns,
		Gatherer:      reg,
	}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return &apiFixture{
		stack:  stack,
		server: server,
		url:    "ws" + strings.TrimPrefix(server.URL, "http") + api.APIPath,
	}
}

func (f *apiFixture) call(t *testing.T, method string, params, out any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.NewAPIClient(f.url).Call(ctx, method, params, out)
}

func requireRPCError(t *testing.T, err error, code int) *client.RPCError {
	t.Helper()
	var rpcErr *client.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.Code, "message: %s", rpcErr.Message)
	return rpcErr
}

func TestVersion(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	var resp models.VersionResponse
	require.NoError(t, f.call(t, models.MethodVersion, nil, &resp))
	assert.Equal(t, config.AppVersion, resp.Version)
	assert.NotEmpty(t, resp.OS)
}

func TestMountUnmountRemoveRoundTrip(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	var mounted models.MountResponse
	require.NoError(t, f.call(t, models.MethodMountsMount, models.MountParams{
		Profile:  "s3",
		Resource: "media",
	}, &mounted))
	assert.Equal(t, "Z", mounted.Letter)
	assert.Equal(t, "connected", mounted.Status)
	assert.NotNil(t, mounted.MountedAt)

	var list models.MountsResponse
	require.NoError(t, f.call(t, models.MethodMounts, nil, &list))
	require.Len(t, list.Mounts, 1)
	assert.Equal(t, "s3", list.Mounts[0].Profile)

	var released models.ReleaseResponse
	require.NoError(t, f.call(t, models.MethodMountsUnmount, models.LetterParams{Letter: "Z:"}, &released))
	assert.Equal(t, "success", released.Outcome)
	assert.Equal(t, "graceful", released.Stage)

	require.NoError(t, f.call(t, models.MethodMountsRemove, models.LetterParams{Letter: "Z"}, nil))

	err := f.call(t, models.MethodMountsGet, models.LetterParams{Letter: "Z"}, nil)
	requireRPCError(t, err, models.ErrCodeNotFound)
}

func TestMountErrorsCarryKind(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	f.stack.Volumes.Mount(drives.MustLetter("X"), "USB")

	err := f.call(t, models.MethodMountsMount, models.MountParams{
		Profile:  "s3",
		Resource: "media",
		Letter:   "X",
	}, nil)
	rpcErr := requireRPCError(t, err, models.ErrCodeLetterUnavailable)
	require.NotNil(t, rpcErr.Data)
	assert.Equal(t, coordinator.KindLetterUnavailable.String(), rpcErr.Kind())
	assert.Equal(t, "X", rpcErr.Data.Letter)
	assert.False(t, rpcErr.Data.StateChanged)
}

func TestInvalidParams(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	err := f.call(t, models.MethodMountsMount, models.MountParams{Resource: "media"}, nil)
	rpcErr := requireRPCError(t, err, models.ErrCodeInvalidParams)
	assert.Contains(t, rpcErr.Message, "profile is required")

	err = f.call(t, models.MethodMountsUnmount, nil, nil)
	requireRPCError(t, err, models.ErrCodeInvalidParams)
}

func TestUnmountUnknownLetter(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	err := f.call(t, models.MethodMountsUnmount, models.LetterParams{Letter: "V"}, nil)
	requireRPCError(t, err, models.ErrCodeNotFound)
}

func TestMethodNotFound(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	err := f.call(t, "mounts.frobnicate", nil, nil)
	requireRPCError(t, err, models.ErrCodeMethodNotFound)
}

func TestUnmountAllAndLetters(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	for range 2 {
		require.NoError(t, f.call(t, models.MethodMountsMount, models.MountParams{Profile: "s3", Resource: "b"}, nil))
	}

	var letters models.LettersResponse
	require.NoError(t, f.call(t, models.MethodLetters, nil, &letters))
	assert.Equal(t, []string{"V", "W", "X", "Y", "Z"}, letters.Alphabet)
	assert.Equal(t, []string{"Y", "Z"}, letters.Registered)
	assert.Equal(t, []string{"V", "W", "X"}, letters.Free)

	var batch models.UnmountAllResponse
	require.NoError(t, f.call(t, models.MethodMountsUnmountAll, nil, &batch))
	assert.Equal(t, []string{"Y", "Z"}, batch.Succeeded)
	assert.Empty(t, batch.Failed)
	assert.Len(t, batch.Results, 2)
}

func TestDetectAdoptsForeignMount(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	f.stack.Procs.AddDriver(777, drives.MustLetter("W"))

	var resp models.DetectResponse
	require.NoError(t, f.call(t, models.MethodMountsDetect, nil, &resp))
	require.Len(t, resp.Letters, 1)
	got := resp.Letters[0]
	assert.Equal(t, "W", got.Letter)
	assert.Equal(t, "process", got.Reason)
	assert.Equal(t, []int32{777}, got.PIDs)
	require.NotNil(t, got.Record)
	assert.True(t, got.Record.Adopted)
}

func TestNotificationsAreBroadcast(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	}()

	// a pong means the session is registered for broadcasts
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "pong", string(msg))

	require.NoError(t, f.call(t, models.MethodMountsMount, models.MountParams{Profile: "s3", Resource: "b"}, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		var notif models.RequestObject
		require.NoError(t, json.Unmarshal(msg, &notif))
		if notif.Method != models.NotificationMountsChanged {
			continue
		}
		assert.Nil(t, notif.ID)
		var rec models.MountResponse
		require.NoError(t, json.Unmarshal(notif.Params, &rec))
		assert.Equal(t, "Z", rec.Letter)
		assert.Equal(t, "connected", rec.Status)
		return
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	for path, want := range map[string]string{
		"/health":  "ok",
		"/metrics": "bucketdrive_test_total",
	} {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+path, http.NoBody)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(f.url, header)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, resp, err = websocket.DefaultDialer.Dial(f.url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}
