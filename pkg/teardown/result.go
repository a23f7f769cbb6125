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

package teardown

import (
	"errors"
	"fmt"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
)

// ErrStillMounted is the reason carried by a PartialFailure when the final
// verification still found the volume.
var ErrStillMounted = errors.New("volume still mounted")

// Stage is a step of the release sequence. Stages only ever advance.
type Stage int

const (
	// StageNone means no action was needed: the letter was already free.
	StageNone Stage = iota
	StageGraceful
	StageForceKill
	StageDetach
	StageReleaseHint
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageGraceful:
		return "graceful"
	case StageForceKill:
		return "force_kill"
	case StageDetach:
		return "detach"
	case StageReleaseHint:
		return "release_hint"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the verified result of a release.
type Outcome int

const (
	Success Outcome = iota
	PartialFailure
	// Skipped means no stage ran: the letter was busy or unknown, and its
	// state is exactly as before.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	default:
		return "partial_failure"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Target is one letter to release, with the process refs last recorded for
// it. PIDs may be empty for adopted mounts.
type Target struct {
	PIDs   []int32
	Letter drives.Letter
}

// Result reports one letter. Stage is the stage whose verification freed
// the letter on Success, or the highest stage reached on PartialFailure.
type Result struct {
	Err     error
	Letter  drives.Letter
	Outcome Outcome
	Stage   Stage
}

func (r Result) OK() bool {
	return r.Outcome == Success
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s released at %s", r.Letter.Device(), r.Stage)
	}
	if r.Outcome == Skipped {
		return fmt.Sprintf("%s skipped: %v", r.Letter.Device(), r.Err)
	}
	return fmt.Sprintf("%s not released (reached %s): %v", r.Letter.Device(), r.Stage, r.Err)
}

// NotAttempted is the result for a letter no release stage touched.
func NotAttempted(l drives.Letter, err error) Result {
	return Result{Letter: l, Outcome: Skipped, Stage: StageNone, Err: err}
}

func success(l drives.Letter, stage Stage) Result {
	return Result{Letter: l, Outcome: Success, Stage: stage}
}

func partial(l drives.Letter, stage Stage, err error) Result {
	return Result{Letter: l, Outcome: PartialFailure, Stage: stage, Err: err}
}
