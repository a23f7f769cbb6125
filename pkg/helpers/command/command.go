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

// Package command runs external programs: the short-lived OS utilities used
// during teardown, and the long-lived mount driver.
package command

import (
	"context"
	"os/exec"
)

type StartOptions struct {
	// HideWindow prevents a console window from appearing (Windows-only).
	HideWindow bool
	// Detach puts the process in its own process group so it outlives
	// this application and does not receive its console signals.
	Detach bool
}

type Executor interface {
	// Run executes a command and waits for it to complete.
	// Returns an error if the command fails to start or exits with non-zero status.
	Run(ctx context.Context, name string, args ...string) error

	// Output runs a command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type RealExecutor struct {
	// Options applies to every command run by this executor.
	Options StartOptions
}

//nolint:wrapcheck // Wrapping exec errors loses important context
func (e *RealExecutor) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	applyOptions(cmd, e.Options)
	return cmd.Run()
}

//nolint:wrapcheck // Wrapping exec errors loses important context
func (e *RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	applyOptions(cmd, e.Options)
	return cmd.CombinedOutput()
}

// Detached builds a command that is not bound to any context: cancelling
// the request that started it must not kill it.
func Detached(opts StartOptions, name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...) //nolint:gosec,noctx // driver path comes from config
	applyOptions(cmd, opts)
	return cmd
}
