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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/olekukonko/tablewriter"
)

func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func (a *App) render(v any, table func(io.Writer)) error {
	if a.output == outputJSON {
		return printJSON(a.Out, v)
	}
	table(a.Out)
	return nil
}

func pidList(pids []int32) string {
	if len(pids) == 0 {
		return "-"
	}
	parts := make([]string, len(pids))
	for i, p := range pids {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}

func mountedSince(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mountRows(ms []models.MountResponse) [][]string {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		remote := m.Profile + ":" + m.Resource
		if m.Adopted && m.Profile == "" {
			remote = "(adopted)"
		}
		rows = append(rows, []string{
			m.Letter + ":",
			m.Status,
			remote,
			pidList(m.ProcessRef),
			mountedSince(m.MountedAt),
			orDash(m.LastError),
		})
	}
	return rows
}

var mountHeaders = []string{"Letter", "Status", "Remote", "PIDs", "Mounted", "Error"}

func releaseRows(rs []models.ReleaseResponse) [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{r.Letter + ":", r.Outcome, r.Stage, orDash(r.Error)})
	}
	return rows
}

var releaseHeaders = []string{"Letter", "Outcome", "Stage", "Error"}
