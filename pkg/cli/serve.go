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
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RunService starts the service and blocks until ctx is done or the
// service stops on its own.
func RunService(ctx context.Context, cfg *config.Instance) error {
	stop, done, err := service.Start(cfg, service.Options{})
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case <-done:
		log.Warn().Msg("service stopped unexpectedly")
	}
	if err := stop(); err != nil {
		return fmt.Errorf("service shutdown: %w", err)
	}
	return nil
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mount service in the foreground",
		Long: `Run the mount service until interrupted.

On start the service restores the saved mount table, re-adopts any letters
still mounted by a driver, and serves the API the other commands use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if app.Serve != nil {
				return app.Serve(ctx)
			}
			if app.Config == nil {
				return errors.New("no config loaded")
			}
			return RunService(ctx, app.Config)
		},
	}
}
