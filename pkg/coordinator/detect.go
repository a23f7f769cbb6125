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
	"fmt"
	"slices"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/rs/zerolog/log"
)

// DetectedLetter is one row of the detection view: the probe's verdict on a
// letter merged with the registry record for it, if any. Registered letters
// the probe did not classify appear with ReasonNone.
type DetectedLetter struct {
	Record *mounts.Record `json:"record,omitempty"`
	procprobe.Classification
}

// Detect probes the OS, folds the result into the registry and returns the
// merged view in letter order. A failed probe aborts before anything is
// changed. Letters touched by another operation while the probe ran are
// left as they are.
func (c *Coordinator) Detect(ctx context.Context) ([]DetectedLetter, error) {
	start := c.deps.Clock.Now()
	out, err := c.detect(ctx)
	c.deps.Metrics.recordDetect(err, c.deps.Clock.Since(start).Seconds())
	return out, err
}

func (c *Coordinator) detect(ctx context.Context) ([]DetectedLetter, error) {
	classes, locked, err := c.reconcile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("detection aborted")
		return nil, err
	}
	locked.unlock()

	records := make(map[drives.Letter]mounts.Record)
	for _, rec := range c.registry.List() {
		records[rec.Letter] = rec
	}

	out := make([]DetectedLetter, 0, len(classes)+len(records))
	seen := make(map[drives.Letter]bool, len(classes))
	for _, cl := range classes {
		d := DetectedLetter{Classification: cl}
		if rec, ok := records[cl.Letter]; ok {
			d.Record = &rec
		}
		seen[cl.Letter] = true
		out = append(out, d)
	}
	for l, rec := range records {
		if seen[l] {
			continue
		}
		out = append(out, DetectedLetter{
			Classification: procprobe.Classification{
				Letter:  l,
				Mounted: c.deps.Volumes.VolumeExists(l),
			},
			Record: &rec,
		})
	}
	slices.SortFunc(out, func(a, b DetectedLetter) int {
		return int(a.Letter) - int(b.Letter)
	})
	return out, nil
}

// lockedLetters is the outcome of reconcile's lock pass. The caller owns
// the acquired locks and must call unlock.
type lockedLetters struct {
	locks    *syncutil.KeyedMutex[drives.Letter]
	acquired []drives.Letter
	busy     []drives.Letter
}

func (l lockedLetters) unlock() {
	for _, letter := range l.acquired {
		l.locks.Unlock(letter)
	}
}

// reconcile classifies the alphabet and folds the result into the registry
// while holding the locks of every letter involved. Letters that another
// operation held, or locked and released, while the probe ran are left
// alone: the probe saw them before that operation's change.
func (c *Coordinator) reconcile(ctx context.Context) ([]procprobe.Classification, lockedLetters, error) {
	stamp := c.locks.Stamp()
	classes, err := c.probe.Classify(ctx)
	if err != nil {
		return nil, lockedLetters{}, &Error{Kind: KindProbeUnavailable, Err: err}
	}

	letters := slices.Clone(c.pool.Alphabet())
	for _, rec := range c.registry.List() {
		letters = append(letters, rec.Letter)
	}
	for _, cl := range classes {
		letters = append(letters, cl.Letter)
	}

	acquired, busy, stale := c.locks.TryLockAllSince(letters, stamp)
	skip := make(map[drives.Letter]bool, len(busy)+len(stale))
	for _, l := range slices.Concat(busy, stale) {
		skip[l] = true
	}
	if len(stale) > 0 {
		log.Debug().
			Str("letters", drives.Alphabet(stale).String()).
			Msg("letters changed during probe, not reconciling them")
	}

	if rep := c.registry.ReconcileWithProbe(classes, skip); rep.Changed() {
		c.persist()
	}
	return classes, lockedLetters{locks: c.locks, acquired: acquired, busy: busy}, nil
}

// Refresh reconciles the registry with the OS without building the view.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err := c.Detect(ctx)
	return err
}

// Restore loads the persisted snapshot. Every record comes back
// Disconnected; call Detect afterwards to re-verify the ones still mounted.
func (c *Coordinator) Restore() error {
	if c.deps.Store == nil {
		return nil
	}
	records, err := c.deps.Store.LoadMounts()
	if err != nil {
		return fmt.Errorf("failed to restore mounts: %w", err)
	}
	n := c.registry.Restore(records)

	c.persistMu.Lock()
	restored := c.registry.Snapshot()
	c.published = make(map[drives.Letter]mounts.Record, len(restored))
	for _, rec := range restored {
		c.published[rec.Letter] = rec
	}
	c.persistMu.Unlock()

	c.deps.Metrics.recordRecords(restored)
	log.Info().Int("records", n).Msg("restored mount records")
	return nil
}
