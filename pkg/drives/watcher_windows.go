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

//go:build windows

package drives

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/rs/zerolog/log"
)

const (
	// Win32_VolumeChangeEvent event types
	wmiEventArrival = 2
	wmiEventRemoval = 3

	// NextEvent timeout, bounds how long Stop waits for the watch loop
	wmiPollTimeoutMs = 1000
)

// wmiWatcher implements VolumeWatcher with WMI volume change notifications.
// Only letters in the alphabet are reported.
type wmiWatcher struct {
	events   chan VolumeEvent
	stopChan chan struct{}
	alphabet Alphabet
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewVolumeWatcher returns the platform volume watcher for the alphabet.
func NewVolumeWatcher(alphabet Alphabet, _ VolumeInspector) (VolumeWatcher, error) {
	return &wmiWatcher{
		events:   make(chan VolumeEvent, 16),
		stopChan: make(chan struct{}),
		alphabet: alphabet,
	}, nil
}

func (w *wmiWatcher) Events() <-chan VolumeEvent {
	return w.events
}

func (w *wmiWatcher) Start() error {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		return fmt.Errorf("failed to initialize COM: %w", err)
	}
	ole.CoUninitialize()

	w.wg.Add(1)
	go w.watch()
	return nil
}

func (w *wmiWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
		close(w.events)
	})
}

func (w *wmiWatcher) watch() {
	defer w.wg.Done()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		log.Error().Err(err).Msg("failed to initialize COM for volume watcher")
		return
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		log.Error().Err(err).Msg("failed to create WMI locator")
		return
	}
	defer unknown.Release()

	wmi, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		log.Error().Err(err).Msg("failed to query WMI interface")
		return
	}
	defer wmi.Release()

	serviceRaw, err := oleutil.CallMethod(wmi, "ConnectServer")
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to WMI service")
		return
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	queryRaw, err := oleutil.CallMethod(service, "ExecNotificationQuery",
		"SELECT * FROM Win32_VolumeChangeEvent WHERE EventType = 2 OR EventType = 3")
	if err != nil {
		log.Error().Err(err).Msg("failed to execute WMI notification query")
		return
	}
	sink := queryRaw.ToIDispatch()
	defer sink.Release()

	log.Debug().Str("alphabet", w.alphabet.String()).Msg("watching volume changes")

	for {
		select {
		case <-w.stopChan:
			return
		default:
		}

		nextRaw, err := oleutil.CallMethod(sink, "NextEvent", wmiPollTimeoutMs)
		if err != nil {
			// timeout, loop around to check for stop
			continue
		}
		if nextRaw.VT == ole.VT_NULL || nextRaw.VT == ole.VT_EMPTY {
			continue
		}

		event := nextRaw.ToIDispatch()
		w.handle(event)
		event.Release()
	}
}

func (w *wmiWatcher) handle(event *ole.IDispatch) {
	typeRaw, err := oleutil.GetProperty(event, "EventType")
	if err != nil {
		log.Debug().Err(err).Msg("failed to read volume event type")
		return
	}
	nameRaw, err := oleutil.GetProperty(event, "DriveName")
	if err != nil {
		log.Debug().Err(err).Msg("failed to read volume drive name")
		return
	}

	l, err := ParseLetter(strings.TrimSpace(nameRaw.ToString()))
	if err != nil || !w.alphabet.Contains(l) {
		return
	}

	var kind VolumeEventType
	switch typeRaw.Val {
	case wmiEventArrival:
		kind = VolumeArrived
	case wmiEventRemoval:
		kind = VolumeRemoved
	default:
		return
	}

	select {
	case w.events <- VolumeEvent{Letter: l, Type: kind}:
		log.Debug().Str("letter", l.String()).Stringer("type", kind).Msg("volume change detected")
	case <-w.stopChan:
	}
}
