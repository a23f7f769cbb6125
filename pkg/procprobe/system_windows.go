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

//go:build windows

package procprobe

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Terminate asks pid and its children to close. gopsutil's Terminate is
// TerminateProcess on Windows, which is a hard kill, so the polite request
// goes through taskkill without /F.
func (s *System) Terminate(ctx context.Context, pid int32) error {
	if err := s.cmd.Run(ctx, "taskkill", "/T", "/PID", strconv.Itoa(int(pid))); err != nil {
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	log.Debug().Int32("pid", pid).Msg("requested process close")
	return nil
}

// Kill forcibly ends pid and its children with taskkill /F /T, so helper
// processes the driver started die with it. If taskkill fails (the
// process may already be gone) the pid alone is ended through gopsutil.
func (s *System) Kill(ctx context.Context, pid int32) error {
	err := s.cmd.Run(ctx, "taskkill", "/F", "/T", "/PID", strconv.Itoa(int(pid)))
	if err == nil {
		log.Debug().Int32("pid", pid).Msg("killed process tree")
		return nil
	}
	log.Debug().Err(err).Int32("pid", pid).Msg("taskkill failed, killing process directly")
	return killProcess(ctx, pid)
}
