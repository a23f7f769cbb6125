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

// Package broker fans mount notifications out to every consumer in the
// service. Sends never block: a consumer that falls behind loses
// notifications rather than stalling the coordinator.
package broker

import (
	"context"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

type Broker struct {
	source      <-chan models.Notification
	subscribers map[int]chan models.Notification
	done        chan struct{}
	nextID      int
	mu          syncutil.RWMutex
	closed      bool
}

func NewBroker(source <-chan models.Notification) *Broker {
	return &Broker{
		source:      source,
		subscribers: make(map[int]chan models.Notification),
		done:        make(chan struct{}),
	}
}

// Run forwards notifications until ctx is done or source closes, then
// closes every subscriber channel.
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	defer b.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-b.source:
			if !ok {
				log.Debug().Msg("notification source closed")
				return
			}
			b.broadcast(notif)
		}
	}
}

// Done is closed once Run has returned.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

func (b *Broker) broadcast(notif models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- notif:
		default:
			log.Warn().
				Int("subscriber", id).
				Str("method", notif.Method).
				Msg("subscriber full, dropping notification")
		}
	}
}

// Subscribe registers a consumer with a buffer of size notifications. A
// subscription made after the broker stopped gets a closed channel.
func (b *Broker) Subscribe(size int) (<-chan models.Notification, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Notification, size)
	if b.closed {
		close(ch)
		return ch, id
	}
	b.subscribers[id] = ch
	return ch, id
}

// Unsubscribe closes the channel for id. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.closed = true
}
