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

// Package cli is the bucketdrive command line: a client for the running
// service plus the command that runs the service itself.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bucketdrive/bucketdrive/internal/telemetry"
	"github.com/bucketdrive/bucketdrive/pkg/api/client"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/helpers"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// App carries what every command needs. Tests swap Client and Serve.
type App struct {
	Config *config.Instance
	Client client.APIClient
	// Serve runs the service until ctx is done.
	Serve func(ctx context.Context) error
	Out   io.Writer

	output string
	apiURL string
}

// Setup creates directories, starts logging and loads the config. writers
// receive log output alongside the log file.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaults config.Values, writers ...io.Writer) (*config.Instance, error) {
	for _, dir := range []string{helpers.ConfigDir(), helpers.DataDir(), helpers.LogDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := helpers.InitLogging(helpers.LogDir(), cfg.DebugLogging(), writers...); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg.SetDebugLogging(cfg.DebugLogging())

	if err := telemetry.Init(
		cfg.ErrorReporting(),
		cfg.SentryDSN(),
		uuid.NewString(),
		config.AppVersion,
	); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Mount cloud storage buckets as drive letters",
		Long: `bucketdrive mounts remote buckets as Windows drive letters through a
driver process, keeps track of which letters it owns, and tears mounts
down reliably even when the driver hangs.

Most commands talk to the running service; start it with "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if app.output != outputTable && app.output != outputJSON {
				return fmt.Errorf("unknown output format %q (table|json)", app.output)
			}
			if app.apiURL != "" {
				app.Client = client.NewAPIClient(app.apiURL)
			}
			if app.Client == nil && app.Config != nil {
				app.Client = client.NewLocalAPIClient(app.Config)
			}
			return nil
		},
	}
	root.SetOut(app.Out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&app.output, "output", "o", outputTable, "output format (table|json)")
	root.PersistentFlags().StringVar(&app.apiURL, "api", "", "service websocket URL (default from config)")

	root.AddCommand(
		newServeCmd(app),
		newListCmd(app),
		newMountCmd(app),
		newUnmountCmd(app),
		newUnmountAllCmd(app),
		newRemoveCmd(app),
		newDetectCmd(app),
		newLettersCmd(app),
		newReloadCmd(app),
		newVersionCmd(app),
	)
	return root
}

func (a *App) call(ctx context.Context, method string, params, out any) error {
	if a.Client == nil {
		return errors.New("no service client configured")
	}
	return a.Client.Call(ctx, method, params, out) //nolint:wrapcheck // RPC errors are shown as-is
}

// ExitCode maps an error to the process exit status. Mount failures get a
// status per kind so scripts can branch without parsing output.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var rpcErr *client.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Kind() != "" {
		if k, kerr := coordinator.ParseKind(rpcErr.Kind()); kerr == nil {
			return 1 + int(k)
		}
	}
	var ce *coordinator.Error
	if errors.As(err, &ce) {
		return 1 + int(ce.Kind)
	}
	return 1
}
