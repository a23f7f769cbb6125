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
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/spf13/cobra"
)

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List managed mounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp models.MountsResponse
			if err := app.call(cmd.Context(), models.MethodMounts, nil, &resp); err != nil {
				return err
			}
			return app.render(resp, func(w io.Writer) {
				if len(resp.Mounts) == 0 {
					_, _ = fmt.Fprintln(w, "no managed mounts")
					return
				}
				printTable(w, mountHeaders, mountRows(resp.Mounts))
			})
		},
	}
}

func newMountCmd(app *App) *cobra.Command {
	var params models.MountParams
	cmd := &cobra.Command{
		Use:   "mount <profile> <resource>",
		Short: "Mount a remote on a free letter",
		Long: `Mount profile:resource through the driver and wait until the letter is
reachable.

Without --letter the highest free letter in the configured range is used.

Exit status by failure kind:
  2  letter unavailable
  3  driver failed to start
  4  mount never became reachable
  5  teardown incomplete
  6  process listing unavailable`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Profile = args[0]
			params.Resource = args[1]
			var resp models.MountResponse
			if err := app.call(cmd.Context(), models.MethodMountsMount, params, &resp); err != nil {
				return err
			}
			return app.render(resp, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "mounted %s:%s on %s:\n", resp.Profile, resp.Resource, resp.Letter)
			})
		},
	}
	cmd.Flags().StringVarP(&params.Letter, "letter", "l", "", "drive letter to use")
	cmd.Flags().StringVar(&params.VolumeName, "name", "", "volume label shown by the OS")
	return cmd
}

func newUnmountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount <letter>",
		Short: "Release a mounted letter",
		Long: `Release a letter, escalating from a graceful driver stop to a forced kill,
an OS detach and finally a dismount hint until the letter is free.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.ReleaseResponse
			err := app.call(cmd.Context(), models.MethodMountsUnmount, models.LetterParams{Letter: args[0]}, &resp)
			if err != nil {
				return err
			}
			return app.render(resp, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "released %s: (%s)\n", resp.Letter, resp.Stage)
			})
		},
	}
}

func newUnmountAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount-all",
		Short: "Release every managed letter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp models.UnmountAllResponse
			if err := app.call(cmd.Context(), models.MethodMountsUnmountAll, nil, &resp); err != nil {
				return err
			}
			err := app.render(resp, func(w io.Writer) {
				if len(resp.Results) == 0 {
					_, _ = fmt.Fprintln(w, "nothing to unmount")
					return
				}
				printTable(w, releaseHeaders, releaseRows(resp.Results))
			})
			if err != nil {
				return err
			}
			if len(resp.Failed) > 0 {
				return fmt.Errorf("failed to release %s", strings.Join(resp.Failed, ", "))
			}
			return nil
		},
	}
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <letter>",
		Short: "Forget a disconnected or failed mount record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.call(cmd.Context(), models.MethodMountsRemove, models.LetterParams{Letter: args[0]}, nil)
			if err != nil {
				return err
			}
			if app.output == outputJSON {
				return printJSON(app.Out, models.MountRemovedParams{Letter: strings.TrimSuffix(strings.ToUpper(args[0]), ":")})
			}
			_, _ = fmt.Fprintf(app.Out, "removed %s\n", args[0])
			return nil
		},
	}
}

func newDetectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Probe the system for letters served by the driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp models.DetectResponse
			if err := app.call(cmd.Context(), models.MethodMountsDetect, nil, &resp); err != nil {
				return err
			}
			return app.render(resp, func(w io.Writer) {
				rows := make([][]string, 0, len(resp.Letters))
				for _, d := range resp.Letters {
					status := "-"
					if d.Record != nil {
						status = d.Record.Status
					}
					mounted := "no"
					if d.Mounted {
						mounted = "yes"
					}
					rows = append(rows, []string{
						d.Letter + ":", d.Reason, mounted, orDash(d.Label), pidList(d.PIDs), status,
					})
				}
				if len(rows) == 0 {
					_, _ = fmt.Fprintln(w, "no letters detected")
					return
				}
				printTable(w, []string{"Letter", "Reason", "Mounted", "Label", "PIDs", "Record"}, rows)
			})
		},
	}
}

func newLettersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "letters",
		Short: "Show how the configured letters are in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp models.LettersResponse
			if err := app.call(cmd.Context(), models.MethodLetters, nil, &resp); err != nil {
				return err
			}
			return app.render(resp, func(w io.Writer) {
				printTable(w, []string{"Set", "Letters"}, [][]string{
					{"range", strings.Join(resp.Alphabet, " ")},
					{"free", orDash(strings.Join(resp.Free, " "))},
					{"managed", orDash(strings.Join(resp.Registered, " "))},
					{"system", orDash(strings.Join(resp.SystemOccupied, " "))},
				})
			})
		},
	}
}

func newReloadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the service config from disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.call(cmd.Context(), models.MethodSettingsReload, nil, nil)
		},
	}
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			resp := models.VersionResponse{
				Version: config.AppVersion,
				OS:      runtime.GOOS,
				Arch:    runtime.GOARCH,
			}
			return app.render(resp, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "bucketdrive %s (%s/%s)\n", resp.Version, resp.OS, resp.Arch)
			})
		},
	}
}
