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

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
	"github.com/rs/zerolog/log"
)

// Unmount releases l through the teardown stages and records the outcome:
// Disconnected on success, Error otherwise. An unknown letter returns an
// error wrapping mounts.ErrNotFound; run Detect first to adopt a mount this
// run did not create.
func (c *Coordinator) Unmount(ctx context.Context, l drives.Letter) (teardown.Result, error) {
	if !c.locks.TryLock(l) {
		err := unavailable(l, ErrLetterBusy)
		return teardown.NotAttempted(l, err), err
	}
	defer c.locks.Unlock(l)

	rec, err := c.registry.Get(l)
	if err != nil {
		return teardown.NotAttempted(l, err), err //nolint:wrapcheck // ErrNotFound already names the letter
	}

	log.Info().Str("letter", l.String()).Str("status", rec.Status.String()).Msg("unmounting")
	res := c.orch.Release(ctx, teardown.Target{Letter: l, PIDs: rec.ProcessRef})
	err = c.applyRelease(rec, res)
	c.persist()
	return res, err
}

// applyRelease writes the post-release record and maps a failure to an
// *Error.
func (c *Coordinator) applyRelease(rec mounts.Record, res teardown.Result) error {
	c.deps.Metrics.recordRelease(res)
	if res.OK() {
		rec.Status = mounts.StatusDisconnected
		rec.ProcessRef = nil
		rec.LastError = ""
		c.upsert(rec)
		return nil
	}

	rec.Status = mounts.StatusError
	rec.LastError = fmt.Sprintf("release stopped at %s: %v", res.Stage, res.Err)
	c.upsert(rec)
	return &Error{
		Kind:         KindTeardownPartialFailure,
		Letter:       rec.Letter,
		Stage:        res.Stage,
		StateChanged: true,
		Err:          res.Err,
	}
}

// LetterResult is one letter's outcome in a batch.
type LetterResult struct {
	Err    error           `json:"-"`
	Result teardown.Result `json:"result"`
}

// BatchResult aggregates UnmountAll. Every targeted letter appears exactly
// once, in letter order.
type BatchResult struct {
	Results []LetterResult `json:"results"`
}

// Succeeded returns the letters released.
func (b BatchResult) Succeeded() drives.Alphabet {
	out := drives.Alphabet{}
	for _, r := range b.Results {
		if r.Err == nil {
			out = append(out, r.Result.Letter)
		}
	}
	return out
}

// Failed returns the letters not released.
func (b BatchResult) Failed() drives.Alphabet {
	out := drives.Alphabet{}
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r.Result.Letter)
		}
	}
	return out
}

// Err joins every per-letter failure, or returns nil.
func (b BatchResult) Err() error {
	var errs []error
	for _, r := range b.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// UnmountAll releases every letter that is mounted or has a record that
// is not Disconnected. It probes first, so driver mounts the registry has
// not seen yet (left by an earlier run, or restored but not yet detected)
// are adopted and released in the same batch. If the probe fails only the
// registered letters are released.
//
// The letter locks for the whole batch are taken up front; letters held by
// another operation are reported as LetterUnavailable and skipped. One
// letter failing never stops the others.
func (c *Coordinator) UnmountAll(ctx context.Context) BatchResult {
	mounted := make(map[drives.Letter]bool)
	classes, locked, err := c.reconcile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("probe failed, unmounting registered letters only")
		var letters []drives.Letter
		for _, rec := range c.registry.List() {
			letters = append(letters, rec.Letter)
		}
		locked.locks = c.locks
		locked.acquired, locked.busy = c.locks.TryLockAll(letters)
	}
	defer locked.unlock()
	for _, cl := range classes {
		if cl.Mounted {
			mounted[cl.Letter] = true
		}
	}

	var batch BatchResult
	for _, l := range locked.busy {
		rec, rerr := c.registry.Get(l)
		active := rerr == nil && rec.Status != mounts.StatusDisconnected
		if !active && !mounted[l] {
			continue
		}
		busyErr := unavailable(l, ErrLetterBusy)
		batch.Results = append(batch.Results, LetterResult{
			Result: teardown.NotAttempted(l, busyErr),
			Err:    busyErr,
		})
	}

	acquired := locked.acquired
	byLetter := make(map[drives.Letter]mounts.Record, len(acquired))
	targets := make([]teardown.Target, 0, len(acquired))
	for _, l := range acquired {
		rec, err := c.registry.Get(l)
		if err != nil || rec.Status == mounts.StatusDisconnected {
			continue
		}
		byLetter[l] = rec
		targets = append(targets, teardown.Target{Letter: l, PIDs: rec.ProcessRef})
	}

	if len(targets) > 0 {
		log.Info().Int("letters", len(targets)).Msg("unmounting all")
		for _, res := range c.orch.ReleaseAll(ctx, targets) {
			batch.Results = append(batch.Results, LetterResult{
				Result: res,
				Err:    c.applyRelease(byLetter[res.Letter], res),
			})
		}
		c.persist()
	}

	slices.SortFunc(batch.Results, func(a, b LetterResult) int {
		return int(a.Result.Letter) - int(b.Result.Letter)
	})
	return batch
}

// Remove deletes a Disconnected or Error record and persists. Removing an
// active record returns an error wrapping mounts.ErrRecordActive.
func (c *Coordinator) Remove(l drives.Letter) error {
	if !c.locks.TryLock(l) {
		return unavailable(l, ErrLetterBusy)
	}
	defer c.locks.Unlock(l)

	if err := c.registry.Delete(l); err != nil {
		return err //nolint:wrapcheck // registry errors already name the letter
	}
	log.Info().Str("letter", l.String()).Msg("removed mount record")
	c.persist()
	return nil
}
