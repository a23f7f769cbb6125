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

// Package coordinator is the entry point for mount lifecycle operations. It
// ties the letter pool, the process probe, the registry and the teardown
// orchestrator together and maps every component failure onto a Kind.
//
// Mutating operations take a try-lock on each letter they touch, so two
// operations on one letter never interleave: the second is rejected with
// KindLetterUnavailable. Letter selection and the Mounting reservation
// happen together under a global allocation lock.
package coordinator

import (
	"slices"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/driver"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Timeouts bound every blocking step.
type Timeouts struct {
	// SpawnVerify is the overall budget for a new mount to appear.
	SpawnVerify time.Duration
	// VerifyBackoff is the first poll interval, doubled after each attempt
	// up to MaxVerifyBackoff.
	VerifyBackoff    time.Duration
	MaxVerifyBackoff time.Duration
	// VerifyAttempts caps the number of reachability checks.
	VerifyAttempts int
	Teardown       teardown.Timeouts
}

var DefaultTimeouts = Timeouts{
	SpawnVerify:      30 * time.Second,
	VerifyBackoff:    250 * time.Millisecond,
	MaxVerifyBackoff: 4 * time.Second,
	VerifyAttempts:   20,
	Teardown:         teardown.DefaultTimeouts,
}

// Config holds the coordinator's settings.
type Config struct {
	Alphabet      drives.Alphabet
	DriverImage   string
	CacheMode     string
	ExtraArgs     []string
	LabelKeywords []string
	Timeouts      Timeouts
}

// Notifier hears about every committed change to the table. Calls are made
// with the persist lock held and must not block.
type Notifier interface {
	RecordChanged(rec mounts.Record)
	RecordRemoved(l drives.Letter)
}

// Deps are the collaborators the coordinator drives. Store, Notifier and
// Metrics may be nil.
type Deps struct {
	Volumes  drives.VolumeInspector
	Detacher drives.Detacher
	Lister   procprobe.Lister
	Signaler procprobe.Signaler
	Spawner  driver.Spawner
	Store    mounts.Store
	Notifier Notifier
	Clock    clockwork.Clock
	Metrics  *Metrics
}

// Coordinator owns the registry and serializes operations per letter.
type Coordinator struct {
	deps      Deps
	registry  *mounts.Registry
	pool      *drives.Pool
	probe     *procprobe.Probe
	orch      *teardown.Orchestrator
	locks     *syncutil.KeyedMutex[drives.Letter]
	published map[drives.Letter]mounts.Record
	cfg       Config
	timeouts  Timeouts
	allocMu   syncutil.Mutex
	persistMu syncutil.Mutex
	mu        syncutil.RWMutex
}

func New(cfg Config, deps Deps) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	registry := mounts.NewRegistry(deps.Clock)
	probe := procprobe.New(procprobe.Config{
		ImageName:     cfg.DriverImage,
		LabelKeywords: cfg.LabelKeywords,
		Alphabet:      cfg.Alphabet,
	}, deps.Lister, deps.Volumes)

	c := &Coordinator{
		deps:     deps,
		cfg:      cfg,
		timeouts: cfg.Timeouts,
		registry: registry,
		pool:     drives.NewPool(cfg.Alphabet, deps.Volumes, registry),
		probe:    probe,
		locks:    syncutil.NewKeyedMutex[drives.Letter](),
		orch: teardown.New(teardown.Deps{
			Volumes:  deps.Volumes,
			Detacher: deps.Detacher,
			Signaler: deps.Signaler,
			Finder:   probe,
			Clock:    deps.Clock,
		}, cfg.Timeouts.Teardown),
	}
	return c
}

// SetTimeouts applies new timeouts to subsequent operations.
func (c *Coordinator) SetTimeouts(t Timeouts) {
	c.mu.Lock()
	c.timeouts = t
	c.mu.Unlock()
	c.orch.SetTimeouts(t.Teardown)
	log.Info().
		Dur("spawn_verify", t.SpawnVerify).
		Int("verify_attempts", t.VerifyAttempts).
		Dur("kill_settle", t.Teardown.KillSettle).
		Msg("mount timeouts updated")
}

func (c *Coordinator) Timeouts() Timeouts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeouts
}

// Alphabet returns the candidate letters.
func (c *Coordinator) Alphabet() drives.Alphabet {
	return c.pool.Alphabet()
}

// List returns every record in letter order.
func (c *Coordinator) List() []mounts.Record {
	return c.registry.List()
}

// Get returns the record for l or an error wrapping mounts.ErrNotFound.
func (c *Coordinator) Get(l drives.Letter) (mounts.Record, error) {
	//nolint:wrapcheck // registry errors are already descriptive
	return c.registry.Get(l)
}

// Partition reports which candidate letters are free right now.
func (c *Coordinator) Partition() drives.Partition {
	return c.pool.Partition()
}

// persist writes the registry snapshot and publishes what changed since the
// last call. A failed write leaves the in-memory state authoritative; the
// next successful write catches up.
func (c *Coordinator) persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	// taken under the lock so a slower writer never overwrites a newer
	// snapshot
	records := c.registry.Snapshot()
	c.deps.Metrics.recordRecords(records)
	c.publish(records)

	if c.deps.Store == nil {
		return
	}
	if err := c.deps.Store.SaveMounts(records); err != nil {
		c.deps.Metrics.recordPersistFailure()
		log.Error().Err(err).Msg("failed to persist mount snapshot")
	}
}

func (c *Coordinator) publish(records []mounts.Record) {
	next := make(map[drives.Letter]mounts.Record, len(records))
	for _, rec := range records {
		next[rec.Letter] = rec
		if prev, ok := c.published[rec.Letter]; ok && sameRecord(prev, rec) {
			continue
		}
		if c.deps.Notifier != nil {
			c.deps.Notifier.RecordChanged(rec.Clone())
		}
	}
	for l := range c.published {
		if _, ok := next[l]; !ok && c.deps.Notifier != nil {
			c.deps.Notifier.RecordRemoved(l)
		}
	}
	c.published = next
}

func sameRecord(a, b mounts.Record) bool {
	return a.Letter == b.Letter &&
		a.Status == b.Status &&
		a.Profile == b.Profile &&
		a.Resource == b.Resource &&
		a.LastError == b.LastError &&
		a.Adopted == b.Adopted &&
		a.MountedAt.Equal(b.MountedAt) &&
		slices.Equal(a.ProcessRef, b.ProcessRef)
}
