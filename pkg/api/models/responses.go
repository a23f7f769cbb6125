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

package models

import (
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
)

type MountResponse struct {
	MountedAt  *time.Time `json:"mountedAt,omitempty"`
	Letter     string     `json:"letter"`
	Status     string     `json:"status"`
	Profile    string     `json:"profile"`
	Resource   string     `json:"resource"`
	LastError  string     `json:"lastError,omitempty"`
	ProcessRef []int32    `json:"processRef"`
	Adopted    bool       `json:"adopted"`
}

func NewMountResponse(rec mounts.Record) MountResponse {
	resp := MountResponse{
		Letter:     rec.Letter.String(),
		Status:     rec.Status.String(),
		Profile:    rec.Profile,
		Resource:   rec.Resource,
		LastError:  rec.LastError,
		ProcessRef: rec.ProcessRef,
		Adopted:    rec.Adopted,
	}
	if resp.ProcessRef == nil {
		resp.ProcessRef = []int32{}
	}
	if !rec.MountedAt.IsZero() {
		t := rec.MountedAt
		resp.MountedAt = &t
	}
	return resp
}

type MountsResponse struct {
	Mounts []MountResponse `json:"mounts"`
}

type ReleaseResponse struct {
	Letter  string `json:"letter"`
	Outcome string `json:"outcome"`
	Stage   string `json:"stage"`
	Error   string `json:"error,omitempty"`
}

type UnmountAllResponse struct {
	Results   []ReleaseResponse `json:"results"`
	Succeeded []string          `json:"succeeded"`
	Failed    []string          `json:"failed"`
}

type DetectedLetterResponse struct {
	Record  *MountResponse `json:"record,omitempty"`
	Letter  string         `json:"letter"`
	Label   string         `json:"label"`
	Reason  string         `json:"reason"`
	PIDs    []int32        `json:"pids"`
	Mounted bool           `json:"mounted"`
}

func NewDetectedLetterResponse(d coordinator.DetectedLetter) DetectedLetterResponse {
	resp := DetectedLetterResponse{
		Letter:  d.Letter.String(),
		Label:   d.Label,
		Reason:  d.Reason.String(),
		PIDs:    d.PIDs,
		Mounted: d.Mounted,
	}
	if resp.PIDs == nil {
		resp.PIDs = []int32{}
	}
	if d.Record != nil {
		rec := NewMountResponse(*d.Record)
		resp.Record = &rec
	}
	return resp
}

type DetectResponse struct {
	Letters []DetectedLetterResponse `json:"letters"`
}

type LettersResponse struct {
	Alphabet       []string `json:"alphabet"`
	Free           []string `json:"free"`
	Registered     []string `json:"registered"`
	SystemOccupied []string `json:"systemOccupied"`
}

func LetterStrings(a drives.Alphabet) []string {
	out := make([]string, 0, len(a))
	for _, l := range a {
		out = append(out, l.String())
	}
	return out
}

type SettingsResponse struct {
	Alphabet     string `json:"alphabet"`
	DriverImage  string `json:"driverImage"`
	CacheMode    string `json:"cacheMode"`
	Store        string `json:"store"`
	DebugLogging bool   `json:"debugLogging"`
}

type VersionResponse struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

type MountRemovedParams struct {
	Letter string `json:"letter"`
}
