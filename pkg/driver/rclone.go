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

package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/command"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/rs/zerolog/log"
)

// diagnosticTail is how much driver output is kept for error reports.
const diagnosticTail = 4096

// RcloneConfig configures the rclone spawner.
type RcloneConfig struct {
	// Path is the driver executable.
	Path string
	// LogDir, when set, receives one log file per letter. The child writes
	// to the file directly, so its output outlives this process. Without
	// it output is only kept in memory.
	LogDir string
}

// Rclone spawns "rclone mount" processes. They are started detached: a
// mount is expected to outlive the run that created it and is re-adopted
// by detection on the next start.
type Rclone struct {
	signaler procprobe.Signaler
	cfg      RcloneConfig
}

func NewRclone(cfg RcloneConfig, signaler procprobe.Signaler) *Rclone {
	return &Rclone{cfg: cfg, signaler: signaler}
}

// Args builds the driver command line for req.
func Args(req SpawnRequest) []string {
	args := []string{"mount", req.Remote, req.Letter.Device()}
	if req.CacheMode != "" {
		args = append(args, "--vfs-cache-mode", req.CacheMode)
	}
	if req.VolumeName != "" {
		args = append(args, "--volname", req.VolumeName)
	}
	return append(args, req.ExtraArgs...)
}

func (r *Rclone) Spawn(ctx context.Context, req SpawnRequest) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Err: err}
	}
	if !req.Letter.Valid() {
		return nil, &SpawnError{Err: fmt.Errorf("invalid letter %q", byte(req.Letter))}
	}

	args := Args(req)
	cmd := command.Detached(command.StartOptions{HideWindow: true, Detach: true}, r.cfg.Path, args...)

	h := &rcloneHandle{
		signaler: r.signaler,
		exited:   make(chan struct{}),
		tail:     newTailBuffer(diagnosticTail),
	}

	var logFile *os.File
	if r.cfg.LogDir != "" {
		f, err := openDriverLog(r.cfg.LogDir, req)
		if err != nil {
			log.Warn().Err(err).Msg("driver log unavailable, keeping output in memory")
		} else {
			logFile = f
			h.logPath = f.Name()
		}
	}
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = h.tail
		cmd.Stderr = h.tail
	}

	log.Info().
		Str("letter", req.Letter.String()).
		Str("remote", req.Remote).
		Strs("args", args).
		Msg("starting mount driver")

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, &SpawnError{Err: err, Output: h.Diagnostic()}
	}
	if logFile != nil {
		// the child holds its own copy
		_ = logFile.Close()
	}

	h.pid = int32(cmd.Process.Pid) //nolint:gosec // pids fit in int32
	go h.wait(cmd)

	return h, nil
}

func openDriverLog(dir string, req SpawnRequest) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create driver log directory: %w", err)
	}
	path := filepath.Join(dir, "driver-"+req.Letter.String()+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path built from letter
	if err != nil {
		return nil, fmt.Errorf("failed to open driver log: %w", err)
	}
	return f, nil
}

type rcloneHandle struct {
	signaler procprobe.Signaler
	exited   chan struct{}
	tail     *tailBuffer
	exitErr  error
	logPath  string
	mu       syncutil.Mutex
	pid      int32
}

func (h *rcloneHandle) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	close(h.exited)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int32("pid", h.pid).Msg("mount driver exited")
}

func (h *rcloneHandle) PID() int32 {
	return h.pid
}

func (h *rcloneHandle) Exited() <-chan struct{} {
	return h.exited
}

func (h *rcloneHandle) Diagnostic() string {
	out := h.tail.String()
	if h.logPath != "" {
		out = readTail(h.logPath, diagnosticTail)
	}

	h.mu.Lock()
	exitErr := h.exitErr
	h.mu.Unlock()
	var ee *exec.ExitError
	if errors.As(exitErr, &ee) && out == "" {
		return ee.String()
	}
	return out
}

func (h *rcloneHandle) Terminate(ctx context.Context) error {
	//nolint:wrapcheck // signaler errors already name the pid
	return h.signaler.Terminate(ctx, h.pid)
}

func (h *rcloneHandle) Kill(ctx context.Context) error {
	//nolint:wrapcheck // signaler errors already name the pid
	return h.signaler.Kill(ctx, h.pid)
}

func readTail(path string, n int64) string {
	f, err := os.Open(path) //nolint:gosec // our own log file
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	if st, err := f.Stat(); err == nil && st.Size() > n {
		if _, err := f.Seek(-n, io.SeekEnd); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return string(data)
}
