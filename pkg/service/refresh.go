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

package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// refreshTimeout bounds a single background detection pass.
const refreshTimeout = 30 * time.Second

// triggerRefresh queues a detection pass. Requests made while one is
// already queued collapse into it.
func (s *Service) triggerRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// refreshLoop re-runs detection on the configured interval and whenever a
// refresh is triggered. The interval is re-read after every pass so a
// config reload takes effect without a restart.
func (s *Service) refreshLoop(ctx context.Context) {
	for {
		if !s.waitRefresh(ctx) {
			return
		}
		s.runRefresh(ctx)
	}
}

// waitRefresh blocks until the next pass is due. It returns false once ctx
// is done.
func (s *Service) waitRefresh(ctx context.Context) bool {
	var tick <-chan time.Time
	if interval := s.cfg.MountTimeouts().RefreshInterval; interval > 0 {
		timer := s.clock.NewTimer(interval)
		defer timer.Stop()
		tick = timer.Chan()
	}

	select {
	case <-ctx.Done():
		return false
	case <-tick:
	case <-s.refresh:
	}
	return true
}

func (s *Service) runRefresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if err := s.coord.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("background refresh failed")
	}
}

// watchVolumes turns OS volume events for our letters into refreshes.
func (s *Service) watchVolumes(ctx context.Context) {
	w := s.platform.Watcher
	if w == nil {
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("failed to start volume watcher")
		return
	}
	defer w.Stop()

	alphabet := s.coord.Alphabet()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if !alphabet.Contains(ev.Letter) {
				continue
			}
			log.Debug().
				Str("letter", ev.Letter.String()).
				Str("event", ev.Type.String()).
				Msg("volume changed")
			s.triggerRefresh()
		}
	}
}
