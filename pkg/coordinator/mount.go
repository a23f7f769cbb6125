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
	"strings"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/driver"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/rs/zerolog/log"
)

// killTimeout bounds the kill issued after a failed verification. It runs
// on a context detached from the caller's, which may already be done.
const killTimeout = 5 * time.Second

// MountRequest asks for a remote to be mounted. A zero Letter lets the pool
// choose, highest letter first.
type MountRequest struct {
	Profile  string `json:"profile"`
	Resource string `json:"resource"`
	// VolumeName overrides the label shown by the OS.
	VolumeName string        `json:"volume_name,omitempty"`
	Letter     drives.Letter `json:"letter,omitempty"`
}

func (r MountRequest) validate() error {
	if strings.TrimSpace(r.Profile) == "" || strings.TrimSpace(r.Resource) == "" {
		return fmt.Errorf("%w: profile and resource are required", ErrInvalidRequest)
	}
	if strings.Contains(r.Profile, ":") {
		return fmt.Errorf("%w: profile may not contain ':'", ErrInvalidRequest)
	}
	return nil
}

// Mount reserves a letter, starts the driver and waits for the mount to
// appear. On success the record is Connected and persisted.
//
// SpawnFailed leaves the registry as it was. VerifyTimeout (including a
// cancelled ctx) kills the driver and leaves the record in Error.
func (c *Coordinator) Mount(ctx context.Context, req MountRequest) (mounts.Record, error) {
	start := c.deps.Clock.Now()
	rec, err := c.mount(ctx, req)
	c.deps.Metrics.recordMount(err, c.deps.Clock.Since(start).Seconds())
	return rec, err
}

func (c *Coordinator) mount(ctx context.Context, req MountRequest) (mounts.Record, error) {
	if err := req.validate(); err != nil {
		return mounts.Record{}, err
	}

	rec, prior, err := c.reserve(req)
	if err != nil {
		return mounts.Record{}, err
	}
	l := rec.Letter
	defer c.locks.Unlock(l)

	log.Info().
		Str("letter", l.String()).
		Str("remote", rec.RemoteRef()).
		Msg("mounting")

	timeouts := c.Timeouts()
	handle, err := c.deps.Spawner.Spawn(ctx, driver.SpawnRequest{
		Remote:     rec.RemoteRef(),
		Letter:     l,
		VolumeName: volumeName(req),
		CacheMode:  c.cfg.CacheMode,
		ExtraArgs:  c.cfg.ExtraArgs,
	})
	if err != nil {
		c.rollback(l, prior)
		log.Error().Err(err).Str("letter", l.String()).Msg("mount driver failed to start")
		return mounts.Record{}, &Error{Kind: KindSpawnFailed, Letter: l, Err: err}
	}

	rec.ProcessRef = []int32{handle.PID()}
	c.upsert(rec)

	err = c.waitMounted(ctx, l, handle, timeouts)
	switch {
	case err == nil:
		rec.Status = mounts.StatusConnected
		rec.MountedAt = c.deps.Clock.Now()
		rec.LastError = ""
		c.upsert(rec)
		c.persist()
		log.Info().Str("letter", l.String()).Int32("pid", handle.PID()).Msg("mount connected")
		return rec.Clone(), nil

	case errors.Is(err, ErrDriverExited):
		c.rollback(l, prior)
		diag := strings.TrimSpace(handle.Diagnostic())
		log.Error().Str("letter", l.String()).Str("output", diag).Msg("mount driver exited early")
		return mounts.Record{}, &Error{
			Kind:   KindSpawnFailed,
			Letter: l,
			Err:    &driver.SpawnError{Err: err, Output: diag},
		}

	default:
		killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), killTimeout)
		if kerr := handle.Kill(killCtx); kerr != nil {
			log.Warn().Err(kerr).Int32("pid", handle.PID()).Msg("failed to kill unverified mount driver")
		}
		cancel()

		rec.Status = mounts.StatusError
		rec.ProcessRef = nil
		rec.LastError = err.Error()
		c.upsert(rec)
		c.persist()
		log.Error().Err(err).Str("letter", l.String()).Msg("mount verification failed")
		return rec.Clone(), &Error{Kind: KindVerifyTimeout, Letter: l, StateChanged: true, Err: err}
	}
}

func volumeName(req MountRequest) string {
	if req.VolumeName != "" {
		return req.VolumeName
	}
	return req.Profile + " " + req.Resource
}

// reserve picks the letter and writes the Mounting record while holding the
// allocation lock, and returns with the letter's lock held. prior is the
// record the reservation replaced, if any.
func (c *Coordinator) reserve(req MountRequest) (mounts.Record, *mounts.Record, error) {
	c.allocMu.Lock()
	defer c.allocMu.Unlock()

	var l drives.Letter
	var prior *mounts.Record

	if req.Letter != 0 {
		l = req.Letter
		if !c.pool.Alphabet().Contains(l) {
			return mounts.Record{}, nil, unavailable(l, ErrOutsideAlphabet)
		}
		if !c.locks.TryLock(l) {
			return mounts.Record{}, nil, unavailable(l, ErrLetterBusy)
		}
		if existing, err := c.registry.Get(l); err == nil {
			if existing.Status != mounts.StatusDisconnected {
				c.locks.Unlock(l)
				return mounts.Record{}, nil, unavailable(l, fmt.Errorf("%w: %s", ErrLetterInUse, existing.Status))
			}
			prior = &existing
		}
		if c.deps.Volumes.VolumeExists(l) {
			c.locks.Unlock(l)
			return mounts.Record{}, nil, unavailable(l, ErrLetterOccupied)
		}
	} else {
		candidates := c.pool.Alphabet().HighestFirst()
		for {
			next, ok := c.pool.NextAvailable(candidates)
			if !ok {
				return mounts.Record{}, nil, unavailable(0, ErrPoolExhausted)
			}
			if c.locks.TryLock(next) {
				l = next
				break
			}
			candidates = slices.DeleteFunc(candidates, func(x drives.Letter) bool { return x == next })
		}
	}

	rec := mounts.Record{
		Letter:   l,
		Profile:  req.Profile,
		Resource: req.Resource,
		Status:   mounts.StatusMounting,
	}
	c.upsert(rec)
	return rec, prior, nil
}

// rollback undoes a reservation that never produced a mount.
func (c *Coordinator) rollback(l drives.Letter, prior *mounts.Record) {
	if prior != nil {
		c.upsert(*prior)
		return
	}
	c.registry.Forget(l)
}

func (c *Coordinator) upsert(rec mounts.Record) {
	if err := c.registry.Upsert(rec); err != nil {
		// records are built here from valid letters and statuses
		panic(fmt.Sprintf("coordinator: invalid record: %v", err))
	}
}

// waitMounted polls for the volume with exponential backoff. It gives up
// after the attempt cap, the overall budget or ctx, and stops early if the
// driver exits.
func (c *Coordinator) waitMounted(
	ctx context.Context,
	l drives.Letter,
	handle driver.Handle,
	timeouts Timeouts,
) error {
	deadline := c.deps.Clock.NewTimer(timeouts.SpawnVerify)
	defer deadline.Stop()

	attempts := max(timeouts.VerifyAttempts, 1)
	delay := timeouts.VerifyBackoff
	for attempt := 1; ; attempt++ {
		if c.deps.Volumes.VolumeExists(l) {
			log.Debug().Str("letter", l.String()).Int("attempt", attempt).Msg("mount verified")
			return nil
		}
		select {
		case <-handle.Exited():
			return ErrDriverExited
		default:
		}
		if attempt >= attempts {
			return fmt.Errorf("%w: not reachable after %d checks", ErrVerifyTimeout, attempt)
		}

		wait := c.deps.Clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("mount verification cancelled: %w", ctx.Err())
		case <-deadline.Chan():
			wait.Stop()
			return fmt.Errorf("%w: not reachable within %s", ErrVerifyTimeout, timeouts.SpawnVerify)
		case <-handle.Exited():
			wait.Stop()
			return ErrDriverExited
		case <-wait.Chan():
		}

		delay *= 2
		if timeouts.MaxVerifyBackoff > 0 && delay > timeouts.MaxVerifyBackoff {
			delay = timeouts.MaxVerifyBackoff
		}
	}
}
