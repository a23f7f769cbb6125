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

package mounts

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/bucketdrive/bucketdrive/pkg/procprobe"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Registry is the in-memory table of mount records, one per letter. All
// reads return copies, so a caller never observes a record mid-update.
type Registry struct {
	clock   clockwork.Clock
	records map[drives.Letter]Record
	mu      syncutil.RWMutex
}

func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		records: make(map[drives.Letter]Record),
	}
}

// Upsert inserts or replaces the record for rec.Letter. The record is stored
// as given; fields are never merged with the previous record.
func (r *Registry) Upsert(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Letter] = rec.Clone()
	return nil
}

// Get returns the record for l or ErrNotFound.
func (r *Registry) Get(l drives.Letter) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[l]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, l)
	}
	return rec.Clone(), nil
}

// Has reports whether any record exists for l. It satisfies
// drives.RegisteredSet.
func (r *Registry) Has(l drives.Letter) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[l]
	return ok
}

// List returns all records in letter order.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Registry) sortedLocked() []Record {
	letters := slices.Sorted(maps.Keys(r.records))
	out := make([]Record, 0, len(letters))
	for _, l := range letters {
		out = append(out, r.records[l].Clone())
	}
	return out
}

// Delete removes the record for l. Only Disconnected and Error records may
// be removed; anything else returns ErrRecordActive.
func (r *Registry) Delete(l drives.Letter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[l]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, l)
	}
	if rec.Status.Active() {
		return fmt.Errorf("%w: %s is %s", ErrRecordActive, l, rec.Status)
	}
	delete(r.records, l)
	return nil
}

// Forget drops the record for l whatever its status. It exists to undo a
// Mounting reservation that never reached the OS; everything else goes
// through Delete.
func (r *Registry) Forget(l drives.Letter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, l)
}

// ReconcileReport lists what a reconciliation pass changed.
type ReconcileReport struct {
	Adopted      drives.Alphabet
	Disconnected drives.Alphabet
	Reconnected  drives.Alphabet
}

// Changed reports whether the pass altered the table.
func (rep ReconcileReport) Changed() bool {
	return len(rep.Adopted)+len(rep.Disconnected)+len(rep.Reconnected) > 0
}

// ReconcileWithProbe folds a probe result into the table:
//
//   - a mounted letter with no record becomes an adopted Connected record
//   - a Connected record the probe does not confirm becomes Disconnected and
//     loses its process refs
//   - a Disconnected record whose letter the probe confirms mounted becomes
//     Connected again with the probed pids (this is how restored records are
//     re-verified)
//   - a confirmed Connected record picks up the probed pids if it had none
//
// Mounting and Error records are left alone, as are letters in busy. The new
// table is built on the side and swapped in whole.
func (r *Registry) ReconcileWithProbe(results []procprobe.Classification, busy map[drives.Letter]bool) ReconcileReport {
	probed := make(map[drives.Letter]procprobe.Classification, len(results))
	for _, c := range results {
		if c.Mounted {
			probed[c.Letter] = c
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	next := make(map[drives.Letter]Record, len(r.records)+len(probed))
	var rep ReconcileReport

	for l, rec := range r.records {
		rec = rec.Clone()
		if busy[l] {
			next[l] = rec
			continue
		}

		c, mounted := probed[l]
		switch rec.Status {
		case StatusConnected:
			if !mounted {
				rec.Status = StatusDisconnected
				rec.ProcessRef = nil
				rep.Disconnected = append(rep.Disconnected, l)
			} else if len(rec.ProcessRef) == 0 && len(c.PIDs) > 0 {
				rec.ProcessRef = slices.Clone(c.PIDs)
			}
		case StatusDisconnected:
			if mounted {
				rec.Status = StatusConnected
				rec.ProcessRef = slices.Clone(c.PIDs)
				rec.MountedAt = now
				rec.LastError = ""
				rep.Reconnected = append(rep.Reconnected, l)
			}
		case StatusMounting, StatusError:
		}
		next[l] = rec
	}

	for l, c := range probed {
		if _, known := next[l]; known || busy[l] {
			continue
		}
		next[l] = Record{
			Letter:     l,
			Status:     StatusConnected,
			ProcessRef: slices.Clone(c.PIDs),
			MountedAt:  now,
			Adopted:    true,
		}
		rep.Adopted = append(rep.Adopted, l)
	}

	r.records = next

	slices.Sort(rep.Adopted)
	slices.Sort(rep.Disconnected)
	slices.Sort(rep.Reconnected)
	if rep.Changed() {
		log.Info().
			Str("adopted", rep.Adopted.String()).
			Str("disconnected", rep.Disconnected.String()).
			Str("reconnected", rep.Reconnected.String()).
			Msg("reconciled mounts with probe")
	}
	return rep
}

// Snapshot returns every record for persistence. Removed records are gone
// from the table already, so nothing else needs filtering.
func (r *Registry) Snapshot() []Record {
	return r.List()
}

// Restore replaces the table with persisted records. Every record comes back
// Disconnected with no process refs: a process handle never survives a
// restart and must be re-verified by a probe before it is trusted.
func (r *Registry) Restore(records []Record) int {
	next := make(map[drives.Letter]Record, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			log.Warn().Err(err).Msg("skipping invalid persisted mount record")
			continue
		}
		rec = rec.Clone()
		rec.Status = StatusDisconnected
		rec.ProcessRef = nil
		next[rec.Letter] = rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = next
	return len(next)
}
