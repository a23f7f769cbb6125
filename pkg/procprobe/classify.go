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

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/rs/zerolog/log"
)

// Reason records which rule classified a letter as ours.
type Reason int

const (
	// ReasonNone: the letter was not classified.
	ReasonNone Reason = iota
	// ReasonProcess: a live driver process names the letter.
	ReasonProcess
	// ReasonLabel: the volume label carries one of our keywords.
	ReasonLabel
	// ReasonReservedRange: the letter is in the reserved alphabet and is
	// not optical media. Last resort; a foreign drive that happens to sit
	// in the range is misclassified as ours.
	ReasonReservedRange
)

func (r Reason) String() string {
	switch r {
	case ReasonProcess:
		return "process"
	case ReasonLabel:
		return "label"
	case ReasonReservedRange:
		return "reserved_range"
	case ReasonNone:
		return "none"
	default:
		return "unknown"
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Classification is the probe's verdict on one letter.
type Classification struct {
	Label   string        `json:"label"`
	PIDs    []int32       `json:"pids,omitempty"`
	Reason  Reason        `json:"reason"`
	Letter  drives.Letter `json:"letter"`
	Mounted bool          `json:"mounted"`
}

// Classify walks the alphabet and returns every letter that is likely ours,
// in letter order. Rules, first match wins:
//
//  1. a live driver process names the letter (mounted iff the volume exists)
//  2. the volume exists and its label contains a keyword
//  3. the volume exists and is not optical media
//
// Letters with no process and no volume are not returned.
func (p *Probe) Classify(ctx context.Context) ([]Classification, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return p.ClassifySnapshot(snap), nil
}

// ClassifySnapshot applies the rules to an existing snapshot.
func (p *Probe) ClassifySnapshot(snap *Snapshot) []Classification {
	out := make([]Classification, 0, len(p.alphabet))

	for _, l := range p.alphabet {
		pids := snap.ForLetter(l)
		exists := p.volumes.VolumeExists(l)

		var label string
		if exists {
			var err error
			label, err = p.volumes.VolumeLabel(l)
			if err != nil {
				log.Debug().Err(err).Str("letter", l.String()).Msg("volume label unavailable")
			}
		}

		c := Classification{
			Letter:  l,
			Mounted: exists,
			Label:   label,
			PIDs:    pids,
		}

		switch {
		case len(pids) > 0:
			c.Reason = ReasonProcess
		case !exists:
			continue
		case p.labels.MatchLabel(label):
			c.Reason = ReasonLabel
		case !p.volumes.IsOpticalMedia(l):
			c.Reason = ReasonReservedRange
		default:
			continue
		}

		out = append(out, c)
	}

	return out
}
