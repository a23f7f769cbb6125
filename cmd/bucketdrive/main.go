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

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bucketdrive/bucketdrive/internal/telemetry"
	"github.com/bucketdrive/bucketdrive/pkg/cli"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/rs/zerolog"
)

func main() {
	var writers []io.Writer
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := cli.Setup(config.BaseDefaults, writers...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	root := cli.NewRootCmd(&cli.App{Config: cfg})
	err = root.Execute()
	telemetry.Close()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
