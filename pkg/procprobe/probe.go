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

// Package procprobe finds mount-driver processes and works out which drive
// letter each one serves, and classifies letters as likely belonging to
// this application.
//
// The driver does not report its letter through any API, so the association
// is derived from command lines. This is a heuristic: a process may start
// after the snapshot, or its arguments may not carry a clean "<L>:" token.
// Results are therefore sets of pids per letter, and inspection failures are
// reported as unknown rather than as "not mounted".
package procprobe

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/rs/zerolog/log"
)

// HeuristicsVersion identifies the classification rules below. Bump it
// whenever matching or classification behaviour changes.
const HeuristicsVersion = 1

// ErrProbeUnavailable means the OS process listing itself failed. Callers
// must not draw conclusions about mounts from a failed probe.
var ErrProbeUnavailable = errors.New("process probe unavailable")

// Lister is the OS process inspector.
type Lister interface {
	// ListProcessesByImageName returns pids whose image matches name.
	ListProcessesByImageName(ctx context.Context, name string) ([]int32, error)
	// CommandLine returns the full command line for pid. An error means
	// the command line is unavailable (exited, access denied).
	CommandLine(ctx context.Context, pid int32) (string, error)
}

// Signaler stops processes.
type Signaler interface {
	// Terminate asks pid to exit.
	Terminate(ctx context.Context, pid int32) error
	// Kill forcibly ends pid.
	Kill(ctx context.Context, pid int32) error
}

// Snapshot is one pass over the driver processes.
type Snapshot struct {
	byLetter map[drives.Letter][]int32
	// Unknown holds pids whose command line could not be read.
	Unknown []int32
	// All holds every driver pid seen, matched or not.
	All []int32
}

// ForLetter returns the pids serving l, possibly none.
func (s *Snapshot) ForLetter(l drives.Letter) []int32 {
	if s == nil {
		return nil
	}
	return slices.Clone(s.byLetter[l])
}

// Letters returns the letters with at least one matching process, sorted.
func (s *Snapshot) Letters() drives.Alphabet {
	if s == nil {
		return nil
	}
	out := make(drives.Alphabet, 0, len(s.byLetter))
	for l := range s.byLetter {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Config holds the probe's tunables.
type Config struct {
	// ImageName is the driver executable, e.g. "rclone.exe".
	ImageName string
	// LabelKeywords mark volume labels as belonging to our remotes.
	LabelKeywords []string
	// Alphabet is the reserved candidate range.
	Alphabet drives.Alphabet
}

// Probe implements the process and letter classification heuristics.
type Probe struct {
	lister   Lister
	volumes  drives.VolumeInspector
	image    *ImageMatcher
	labels   *LabelMatcher
	letters  []*LetterArgMatcher
	alphabet drives.Alphabet
}

func New(cfg Config, lister Lister, volumes drives.VolumeInspector) *Probe {
	p := &Probe{
		lister:   lister,
		volumes:  volumes,
		image:    NewImageMatcher(cfg.ImageName),
		labels:   NewLabelMatcher(cfg.LabelKeywords),
		alphabet: cfg.Alphabet.Sorted(),
	}
	for _, l := range p.alphabet {
		p.letters = append(p.letters, NewLetterArgMatcher(l))
	}
	return p
}

// Alphabet returns the letters the probe classifies.
func (p *Probe) Alphabet() drives.Alphabet {
	return p.alphabet
}

// Snapshot lists driver processes once and maps them to letters in the
// alphabet. Only a failure to list processes is an error.
func (p *Probe) Snapshot(ctx context.Context) (*Snapshot, error) {
	return p.scan(ctx, p.letters)
}

// ProcessesForLetter re-probes for the processes serving l. l need not be in
// the alphabet.
func (p *Probe) ProcessesForLetter(ctx context.Context, l drives.Letter) ([]int32, error) {
	snap, err := p.ProcessesForLetters(ctx, drives.Alphabet{l})
	if err != nil {
		return nil, err
	}
	return snap.ForLetter(l), nil
}

// ProcessesForLetters is Snapshot restricted to an arbitrary set of letters,
// using a single process listing.
func (p *Probe) ProcessesForLetters(ctx context.Context, letters drives.Alphabet) (*Snapshot, error) {
	matchers := make([]*LetterArgMatcher, 0, len(letters))
	for _, l := range letters {
		matchers = append(matchers, NewLetterArgMatcher(l))
	}
	return p.scan(ctx, matchers)
}

func (p *Probe) scan(ctx context.Context, matchers []*LetterArgMatcher) (*Snapshot, error) {
	pids, err := p.lister.ListProcessesByImageName(ctx, p.image.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeUnavailable, err)
	}

	snap := &Snapshot{
		byLetter: make(map[drives.Letter][]int32),
		All:      slices.Clone(pids),
	}
	slices.Sort(snap.All)

	for _, pid := range snap.All {
		cmdline, err := p.lister.CommandLine(ctx, pid)
		if err != nil {
			log.Debug().Err(err).Int32("pid", pid).Msg("command line unavailable, treating as unknown")
			snap.Unknown = append(snap.Unknown, pid)
			continue
		}

		proc := ProcessInfo{PID: pid, Name: p.image.name, Cmdline: cmdline}
		for _, m := range matchers {
			if m.Match(proc) {
				snap.byLetter[m.Letter()] = append(snap.byLetter[m.Letter()], pid)
			}
		}
	}

	return snap, nil
}
