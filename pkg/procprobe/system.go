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

package procprobe

import (
	"context"
	"errors"
	"fmt"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/command"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// System is the gopsutil-backed Lister and Signaler.
type System struct {
	cmd command.Executor
}

// NewSystem returns the OS process layer. cmd runs taskkill on Windows.
func NewSystem(cmd command.Executor) *System {
	if cmd == nil {
		cmd = &command.RealExecutor{Options: command.StartOptions{HideWindow: true}}
	}
	return &System{cmd: cmd}
}

func (*System) ListProcessesByImageName(ctx context.Context, name string) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	matcher := NewImageMatcher(name)
	var pids []int32
	for _, p := range procs {
		procName, err := p.NameWithContext(ctx)
		if err != nil {
			// exited between listing and inspection
			continue
		}
		if matcher.Match(ProcessInfo{PID: p.Pid, Name: procName}) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

func (*System) CommandLine(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", fmt.Errorf("open process %d: %w", pid, err)
	}
	cmdline, err := p.CmdlineWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read command line of %d: %w", pid, err)
	}
	return cmdline, nil
}

// killProcess ends the single process pid. A process that is already gone
// is not an error.
func killProcess(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil
	} else if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	log.Debug().Int32("pid", pid).Msg("killed process")
	return nil
}
