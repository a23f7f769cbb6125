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

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for notification")
	}
	return models.Notification{}
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(source)
	first, _ := b.Subscribe(4)
	second, _ := b.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	source <- models.Notification{Method: models.NotificationMountsChanged}

	assert.Equal(t, models.NotificationMountsChanged, receive(t, first).Method)
	assert.Equal(t, models.NotificationMountsChanged, receive(t, second).Method)

	cancel()
	<-b.Done()

	_, ok := <-first
	assert.False(t, ok)
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(source)
	slow, _ := b.Subscribe(1)
	fast, _ := b.Subscribe(8)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-b.Done()
	}()
	go b.Run(ctx)

	for range 3 {
		source <- models.Notification{Method: models.NotificationMountsRemoved}
	}

	for range 3 {
		receive(t, fast)
	}
	receive(t, slow)
	select {
	case <-slow:
		assert.Fail(t, "slow subscriber should have dropped notifications")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBroker(make(chan models.Notification))
	ch, id := b.Subscribe(1)
	b.Unsubscribe(id)
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestSourceCloseStopsBroker(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(source)
	go b.Run(context.Background())

	close(source)
	<-b.Done()

	late, _ := b.Subscribe(1)
	_, ok := <-late
	assert.False(t, ok, "subscribing after stop yields a closed channel")
}
