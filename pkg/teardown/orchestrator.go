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

// Package teardown releases drive letters through an escalating sequence of
// stages, each gated by a check that the volume is gone:
//
//  1. graceful termination of the recorded driver processes
//  2. forced kill of every process whose command line names the letter,
//     found by a fresh probe
//  3. OS volume detach
//  4. filesystem release hint
//
// A release reports Success only after a verification found the letter
// free. Anything else is a PartialFailure carrying the highest stage reached.
package teardown

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProcessFinder re-probes the driver processes serving a set of letters.
type ProcessFinder interface {
	ProcessesForLetters(ctx context.Context, letters drives.Alphabet) (*procprobe.Snapshot, error)
}

// Timeouts are the settle intervals waited after each action before
// verifying.
type Timeouts struct {
	KillSettle   time.Duration
	DetachSettle time.Duration
	HintSettle   time.Duration
}

// DefaultTimeouts match what rclone needs to unwind a WinFsp mount.
var DefaultTimeouts = Timeouts{
	KillSettle:   3 * time.Second,
	DetachSettle: time.Second,
	HintSettle:   time.Second,
}

// narrowLimit caps concurrent per-letter stage 3/4 runs in ReleaseAll.
const narrowLimit = 4

// Deps are the OS collaborators.
type Deps struct {
	Volumes  drives.VolumeInspector
	Detacher drives.Detacher
	Signaler procprobe.Signaler
	Finder   ProcessFinder
	Clock    clockwork.Clock
}

type Orchestrator struct {
	deps     Deps
	timeouts Timeouts
	mu       syncutil.RWMutex
}

func New(deps Deps, timeouts Timeouts) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Orchestrator{deps: deps, timeouts: timeouts}
}

// SetTimeouts replaces the settle intervals for subsequent releases.
func (o *Orchestrator) SetTimeouts(t Timeouts) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeouts = t
}

func (o *Orchestrator) Timeouts() Timeouts {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.timeouts
}

func (o *Orchestrator) free(l drives.Letter) bool {
	return !o.deps.Volumes.VolumeExists(l)
}

// settle waits d or until ctx is done.
func (o *Orchestrator) settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := o.deps.Clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Release runs the full sequence for one letter.
func (o *Orchestrator) Release(ctx context.Context, t Target) Result {
	l := t.Letter
	if o.free(l) {
		log.Debug().Str("letter", l.String()).Msg("letter already free, nothing to release")
		return success(l, StageNone)
	}
	timeouts := o.Timeouts()

	if len(t.PIDs) > 0 {
		o.terminate(ctx, t.PIDs)
		if err := o.settle(ctx, timeouts.KillSettle); err != nil {
			return partial(l, StageGraceful, err)
		}
		if o.free(l) {
			return o.done(success(l, StageGraceful))
		}
	}

	snap, err := o.deps.Finder.ProcessesForLetters(ctx, drives.Alphabet{l})
	if err != nil {
		log.Warn().Err(err).Str("letter", l.String()).Msg("re-probe failed, skipping force kill")
	}
	if pids := snap.ForLetter(l); len(pids) > 0 {
		o.kill(ctx, pids)
		if err := o.settle(ctx, timeouts.KillSettle); err != nil {
			return partial(l, StageForceKill, err)
		}
	}
	if o.free(l) {
		return o.done(success(l, StageForceKill))
	}

	return o.done(o.releaseNarrow(ctx, l, timeouts))
}

// releaseNarrow runs stages 3 and 4, which act on the letter directly.
func (o *Orchestrator) releaseNarrow(ctx context.Context, l drives.Letter, timeouts Timeouts) Result {
	if err := ctx.Err(); err != nil {
		return partial(l, StageForceKill, err)
	}

	if !o.deps.Detacher.ForceDetach(ctx, l) {
		log.Warn().Str("letter", l.String()).Msg("os rejected volume detach")
	}
	if err := o.settle(ctx, timeouts.DetachSettle); err != nil {
		return partial(l, StageDetach, err)
	}
	if o.free(l) {
		return success(l, StageDetach)
	}

	if err := o.deps.Detacher.ReleaseHint(ctx, l); err != nil {
		log.Debug().Err(err).Str("letter", l.String()).Msg("release hint failed")
	}
	if err := o.settle(ctx, timeouts.HintSettle); err != nil {
		return partial(l, StageReleaseHint, err)
	}
	if o.free(l) {
		return success(l, StageReleaseHint)
	}

	return partial(l, StageReleaseHint, fmt.Errorf("%w: %s", ErrStillMounted, l.Device()))
}

// ReleaseAll releases every target. Stages 1 and 2 run once for the whole
// batch; stages 3 and 4 then run per letter, concurrently, on whatever is
// still mounted. Results are in the order of targets. A failure on one
// letter does not stop the others.
func (o *Orchestrator) ReleaseAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	timeouts := o.Timeouts()

	pending := make([]int, 0, len(targets))
	for i, t := range targets {
		if o.free(t.Letter) {
			results[i] = success(t.Letter, StageNone)
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results
	}

	// stage 1, batched
	var pids []int32
	for _, i := range pending {
		pids = append(pids, targets[i].PIDs...)
	}
	if pids = dedupe(pids); len(pids) > 0 {
		o.terminate(ctx, pids)
		if err := o.settle(ctx, timeouts.KillSettle); err != nil {
			return o.abort(results, targets, pending, StageGraceful, err)
		}
		pending = o.sweep(results, targets, pending, StageGraceful)
		if len(pending) == 0 {
			return results
		}
	}

	// stage 2, batched on one re-probe
	letters := make(drives.Alphabet, 0, len(pending))
	for _, i := range pending {
		letters = append(letters, targets[i].Letter)
	}
	snap, err := o.deps.Finder.ProcessesForLetters(ctx, letters)
	if err != nil {
		log.Warn().Err(err).Msg("batch re-probe failed, skipping force kill")
	}
	pids = pids[:0]
	for _, l := range letters {
		pids = append(pids, snap.ForLetter(l)...)
	}
	if pids = dedupe(pids); len(pids) > 0 {
		o.kill(ctx, pids)
		if err := o.settle(ctx, timeouts.KillSettle); err != nil {
			return o.abort(results, targets, pending, StageForceKill, err)
		}
	}
	pending = o.sweep(results, targets, pending, StageForceKill)

	// stages 3 and 4, per letter
	var g errgroup.Group
	g.SetLimit(narrowLimit)
	for _, i := range pending {
		g.Go(func() error {
			results[i] = o.releaseNarrow(ctx, targets[i].Letter, timeouts)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		o.done(r)
	}
	return results
}

// sweep verifies pending targets, records the freed ones as successes at
// stage and returns the rest.
func (o *Orchestrator) sweep(results []Result, targets []Target, pending []int, stage Stage) []int {
	remaining := pending[:0]
	for _, i := range pending {
		if o.free(targets[i].Letter) {
			results[i] = success(targets[i].Letter, stage)
			continue
		}
		remaining = append(remaining, i)
	}
	return remaining
}

func (*Orchestrator) abort(results []Result, targets []Target, pending []int, stage Stage, err error) []Result {
	for _, i := range pending {
		results[i] = partial(targets[i].Letter, stage, err)
	}
	return results
}

func (o *Orchestrator) terminate(ctx context.Context, pids []int32) {
	for _, pid := range pids {
		if err := o.deps.Signaler.Terminate(ctx, pid); err != nil {
			log.Debug().Err(err).Int32("pid", pid).Msg("terminate failed")
		}
	}
}

func (o *Orchestrator) kill(ctx context.Context, pids []int32) {
	for _, pid := range pids {
		log.Info().Int32("pid", pid).Msg("force killing mount driver")
		if err := o.deps.Signaler.Kill(ctx, pid); err != nil {
			log.Warn().Err(err).Int32("pid", pid).Msg("kill failed")
		}
	}
}

func (*Orchestrator) done(r Result) Result {
	ev := log.Info()
	if !r.OK() {
		ev = log.Warn().Err(r.Err)
	}
	ev.Str("letter", r.Letter.String()).
		Str("stage", r.Stage.String()).
		Str("outcome", r.Outcome.String()).
		Msg("release finished")
	return r
}

func dedupe(pids []int32) []int32 {
	slices.Sort(pids)
	return slices.Compact(pids)
}
