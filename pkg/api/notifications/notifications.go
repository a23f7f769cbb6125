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

// Package notifications turns mount table changes into API notifications.
package notifications

import (
	"encoding/json"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/rs/zerolog/log"
)

// sendNotification never blocks: a full queue drops the notification.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		var err error
		params, err = json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("error marshalling notification params")
			return
		}
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification queue full, dropping notification")
	}
}

func MountsChanged(ns chan<- models.Notification, payload models.MountResponse) {
	sendNotification(ns, models.NotificationMountsChanged, payload)
}

func MountsRemoved(ns chan<- models.Notification, payload models.MountRemovedParams) {
	sendNotification(ns, models.NotificationMountsRemoved, payload)
}

// Notifier publishes coordinator table changes to a notification queue.
type Notifier struct {
	ns chan<- models.Notification
}

func NewNotifier(ns chan<- models.Notification) *Notifier {
	return &Notifier{ns: ns}
}

func (n *Notifier) RecordChanged(rec mounts.Record) {
	MountsChanged(n.ns, models.NewMountResponse(rec))
}

func (n *Notifier) RecordRemoved(l drives.Letter) {
	MountsRemoved(n.ns, models.MountRemovedParams{Letter: l.String()})
}
