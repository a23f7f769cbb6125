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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/client"
	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, api *mocks.MockAPIClient, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &App{Client: api, Out: &out}
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListTable(t *testing.T) {
	t.Parallel()

	mounted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMounts, nil).Return(models.MountsResponse{
		Mounts: []models.MountResponse{
			{Letter: "Z", Status: "connected", Profile: "s3", Resource: "media", ProcessRef: []int32{41, 42}, MountedAt: &mounted},
			{Letter: "Y", Status: "error", Profile: "gcs", Resource: "logs", LastError: "verify timed out"},
		},
	}, nil)

	out, err := runCmd(t, api, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Z:")
	assert.Contains(t, out, "s3:media")
	assert.Contains(t, out, "41,42")
	assert.Contains(t, out, "verify timed out")
	api.AssertExpectations(t)
}

func TestListEmpty(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMounts, nil).Return(models.MountsResponse{}, nil)

	out, err := runCmd(t, api, "ls")
	require.NoError(t, err)
	assert.Equal(t, "no managed mounts\n", out)
}

func TestListJSON(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMounts, nil).Return(models.MountsResponse{
		Mounts: []models.MountResponse{{Letter: "Z", Status: "connected", ProcessRef: []int32{}}},
	}, nil)

	out, err := runCmd(t, api, "list", "-o", "json")
	require.NoError(t, err)

	var got models.MountsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Mounts, 1)
	assert.Equal(t, "Z", got.Mounts[0].Letter)
}

func TestMountSendsFlags(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsMount, models.MountParams{
		Profile:    "s3",
		Resource:   "media",
		Letter:     "X",
		VolumeName: "Media",
	}).Return(models.MountResponse{Letter: "X", Status: "connected", Profile: "s3", Resource: "media"}, nil)

	out, err := runCmd(t, api, "mount", "s3", "media", "--letter", "X", "--name", "Media")
	require.NoError(t, err)
	assert.Equal(t, "mounted s3:media on X:\n", out)
	api.AssertExpectations(t)
}

func TestMountFailureExitCode(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsMount, mock.Anything).Return(nil, &client.RPCError{
		Code:    models.ErrCodeVerifyTimeout,
		Message: "mount on Z: never became reachable",
		Data:    &models.ErrorData{Kind: coordinator.KindVerifyTimeout.String(), Letter: "Z", StateChanged: true},
	})

	_, err := runCmd(t, api, "mount", "s3", "media")
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
}

func TestMountRequiresArgs(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, &mocks.MockAPIClient{}, "mount", "s3")
	require.Error(t, err)
}

func TestUnmount(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsUnmount, models.LetterParams{Letter: "z"}).
		Return(models.ReleaseResponse{Letter: "Z", Outcome: "success", Stage: "graceful"}, nil)

	out, err := runCmd(t, api, "unmount", "z")
	require.NoError(t, err)
	assert.Equal(t, "released Z: (graceful)\n", out)
}

func TestUnmountAllReportsFailures(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsUnmountAll, nil).Return(models.UnmountAllResponse{
		Results: []models.ReleaseResponse{
			{Letter: "Y", Outcome: "success", Stage: "force_kill"},
			{Letter: "Z", Outcome: "partial_failure", Stage: "release_hint", Error: "volume still present"},
		},
		Succeeded: []string{"Y"},
		Failed:    []string{"Z"},
	}, nil)

	out, err := runCmd(t, api, "unmount-all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z")
	assert.Contains(t, out, "force_kill")
	assert.Contains(t, out, "volume still present")
	assert.Equal(t, 1, ExitCode(err))
}

func TestRemoveAndReload(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsRemove, models.LetterParams{Letter: "Y:"}).Return(nil, nil)
	api.On("Call", mock.Anything, models.MethodSettingsReload, nil).Return(nil, nil)

	out, err := runCmd(t, api, "remove", "Y:")
	require.NoError(t, err)
	assert.Equal(t, "removed Y:\n", out)

	_, err = runCmd(t, api, "reload")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestDetectAndLetters(t *testing.T) {
	t.Parallel()

	api := &mocks.MockAPIClient{}
	api.On("Call", mock.Anything, models.MethodMountsDetect, nil).Return(models.DetectResponse{
		Letters: []models.DetectedLetterResponse{
			{Letter: "W", Reason: "process", Mounted: true, PIDs: []int32{777}, Record: &models.MountResponse{Status: "connected"}},
			{Letter: "V", Reason: "label", Mounted: true, Label: "rclone s3", PIDs: []int32{}},
		},
	}, nil)
	api.On("Call", mock.Anything, models.MethodLetters, nil).Return(models.LettersResponse{
		Alphabet:   []string{"V", "W", "X"},
		Free:       []string{"X"},
		Registered: []string{"W"},
	}, nil)

	out, err := runCmd(t, api, "detect")
	require.NoError(t, err)
	assert.Contains(t, out, "777")
	assert.Contains(t, out, "rclone s3")

	out, err = runCmd(t, api, "letters")
	require.NoError(t, err)
	assert.Contains(t, out, "V W X")
}

func TestServeUsesInjectedRunner(t *testing.T) {
	t.Parallel()

	called := false
	app := &App{
		Out: &bytes.Buffer{},
		Serve: func(ctx context.Context) error {
			called = true
			assert.NotNil(t, ctx)
			return nil
		},
	}
	root := NewRootCmd(app)
	root.SetArgs([]string{"serve"})
	require.NoError(t, root.Execute())
	assert.True(t, called)
}

func TestVersionAndOutputFlag(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, &mocks.MockAPIClient{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, config.AppVersion)

	_, err = runCmd(t, &mocks.MockAPIClient{}, "version", "-o", "yaml")
	require.Error(t, err)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("boom"), want: 1},
		{name: "rpc without kind", err: &client.RPCError{Code: models.ErrCodeNotFound}, want: 1},
		{
			name: "letter unavailable",
			err:  &client.RPCError{Data: &models.ErrorData{Kind: "letter_unavailable"}},
			want: 2,
		},
		{
			name: "probe unavailable",
			err:  &client.RPCError{Data: &models.ErrorData{Kind: "probe_unavailable"}},
			want: 6,
		},
		{
			name: "coordinator error",
			err:  &coordinator.Error{Kind: coordinator.KindSpawnFailed},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
