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

package drives

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is used by PollingWatcher when no interval is given.
const DefaultPollInterval = 2 * time.Second

// PollingWatcher diffs VolumeExists over the alphabet on a ticker. It is the
// fallback where no OS notification source is available.
type PollingWatcher struct {
	clock    clockwork.Clock
	volumes  VolumeInspector
	events   chan VolumeEvent
	done     chan struct{}
	present  map[Letter]bool
	alphabet Alphabet
	wg       sync.WaitGroup
	interval time.Duration
	stopOnce sync.Once
}

// PollingOption configures a PollingWatcher.
type PollingOption func(*PollingWatcher)

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) PollingOption {
	return func(w *PollingWatcher) {
		w.interval = d
	}
}

// WithClock sets the clock (for testing).
func WithClock(c clockwork.Clock) PollingOption {
	return func(w *PollingWatcher) {
		w.clock = c
	}
}

func NewPollingWatcher(alphabet Alphabet, volumes VolumeInspector, opts ...PollingOption) *PollingWatcher {
	w := &PollingWatcher{
		clock:    clockwork.NewRealClock(),
		volumes:  volumes,
		events:   make(chan VolumeEvent, 16),
		done:     make(chan struct{}),
		present:  make(map[Letter]bool),
		alphabet: alphabet,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *PollingWatcher) Events() <-chan VolumeEvent {
	return w.events
}

// Start records the current state as the baseline and begins polling.
func (w *PollingWatcher) Start() error {
	for _, l := range w.alphabet {
		w.present[l] = w.volumes.VolumeExists(l)
	}
	ticker := w.clock.NewTicker(w.interval)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.Chan():
				w.poll()
			}
		}
	}()

	log.Debug().Dur("interval", w.interval).Msg("volume polling watcher started")
	return nil
}

func (w *PollingWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
	})
}

func (w *PollingWatcher) poll() {
	for _, l := range w.alphabet {
		now := w.volumes.VolumeExists(l)
		if now == w.present[l] {
			continue
		}
		w.present[l] = now

		ev := VolumeEvent{Letter: l, Type: VolumeRemoved}
		if now {
			ev.Type = VolumeArrived
		}
		select {
		case w.events <- ev:
		case <-w.done:
			return
		}
	}
}
