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

package helpers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/driver"
	"github.com/bucketdrive/bucketdrive/pkg/drives"
)

// DriverImage is the image name used by the fake driver processes.
const DriverImage = "rclone.exe"

var (
	errVolumeBusy      = errors.New("volume busy")
	errProcessNotFound = errors.New("process not found")
)

// FakeVolumes is an in-memory OS volume layer. It implements
// drives.VolumeInspector and drives.Detacher. By default ForceDetach and
// ReleaseHint have no effect, like a volume held open by another program.
type FakeVolumes struct {
	mounted     map[drives.Letter]bool
	labels      map[drives.Letter]string
	optical     map[drives.Letter]bool
	detachFrees map[drives.Letter]bool
	hintFrees   map[drives.Letter]bool
	detachCalls map[drives.Letter]int
	hintCalls   map[drives.Letter]int
	mu          sync.Mutex
}

func NewFakeVolumes() *FakeVolumes {
	return &FakeVolumes{
		mounted:     make(map[drives.Letter]bool),
		labels:      make(map[drives.Letter]string),
		optical:     make(map[drives.Letter]bool),
		detachFrees: make(map[drives.Letter]bool),
		hintFrees:   make(map[drives.Letter]bool),
		detachCalls: make(map[drives.Letter]int),
		hintCalls:   make(map[drives.Letter]int),
	}
}

// Mount makes l resolve with the given label.
func (f *FakeVolumes) Mount(l drives.Letter, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounted[l] = true
	f.labels[l] = label
}

func (f *FakeVolumes) Unmount(l drives.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mounted, l)
	delete(f.labels, l)
}

// SetOptical marks l as a CD/DVD drive.
func (f *FakeVolumes) SetOptical(l drives.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optical[l] = true
}

// SetDetachFrees makes ForceDetach on l succeed and free the letter.
func (f *FakeVolumes) SetDetachFrees(l drives.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachFrees[l] = true
}

// SetHintFrees makes ReleaseHint on l free the letter.
func (f *FakeVolumes) SetHintFrees(l drives.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hintFrees[l] = true
}

func (f *FakeVolumes) VolumeExists(l drives.Letter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounted[l]
}

func (f *FakeVolumes) VolumeLabel(l drives.Letter) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.mounted[l] {
		return "", fmt.Errorf("no volume at %s", l.Device())
	}
	return f.labels[l], nil
}

func (f *FakeVolumes) IsOpticalMedia(l drives.Letter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.optical[l]
}

func (f *FakeVolumes) ForceDetach(_ context.Context, l drives.Letter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachCalls[l]++
	if !f.detachFrees[l] {
		return false
	}
	delete(f.mounted, l)
	return true
}

func (f *FakeVolumes) ReleaseHint(_ context.Context, l drives.Letter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hintCalls[l]++
	if !f.hintFrees[l] {
		return errVolumeBusy
	}
	delete(f.mounted, l)
	return nil
}

func (f *FakeVolumes) DetachCalls(l drives.Letter) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detachCalls[l]
}

func (f *FakeVolumes) HintCalls(l drives.Letter) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hintCalls[l]
}

// FakeProcess is one process in a FakeProcesses table.
type FakeProcess struct {
	exited  chan struct{}
	Image   string
	Cmdline string
	PID     int32
	// Letter is the volume the process serves. When the last process for
	// a letter dies the volume goes away, unless KeepsVolume is set.
	Letter drives.Letter
	// IgnoreTerminate keeps the process alive through Terminate.
	IgnoreTerminate bool
	// IgnoreKill keeps the process alive through Kill.
	IgnoreKill bool
	// KeepsVolume leaves the volume mounted after the process dies.
	KeepsVolume bool
	// Unreadable makes CommandLine fail, like an access-denied process.
	Unreadable bool
}

// FakeProcesses is an in-memory process table. It implements
// procprobe.Lister and procprobe.Signaler.
type FakeProcesses struct {
	volumes    *FakeVolumes
	procs      map[int32]*FakeProcess
	listErr    error
	terminated []int32
	killed     []int32
	mu         sync.Mutex
}

func NewFakeProcesses(volumes *FakeVolumes) *FakeProcesses {
	return &FakeProcesses{
		volumes: volumes,
		procs:   make(map[int32]*FakeProcess),
	}
}

// Add inserts p. Image defaults to DriverImage.
func (f *FakeProcesses) Add(p FakeProcess) {
	if p.Image == "" {
		p.Image = DriverImage
	}
	p.exited = make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[p.PID] = &p
}

// AddDriver adds a well-behaved driver process serving l and mounts l.
func (f *FakeProcesses) AddDriver(pid int32, l drives.Letter) {
	f.Add(FakeProcess{
		PID:     pid,
		Letter:  l,
		Cmdline: DriverCmdline("remote:bucket", l),
	})
	f.volumes.Mount(l, "rclone remote")
}

// DriverCmdline is what a driver serving remote at l looks like.
func DriverCmdline(remote string, l drives.Letter) string {
	return fmt.Sprintf(`"C:\Program Files\rclone\rclone.exe" mount %s %s --vfs-cache-mode full`, remote, l.Device())
}

// SetListError makes ListProcessesByImageName fail with err until reset
// with nil.
func (f *FakeProcesses) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// Update changes a process in place.
func (f *FakeProcesses) Update(pid int32, fn func(p *FakeProcess)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.procs[pid]; ok {
		fn(p)
	}
}

func (f *FakeProcesses) Alive(pid int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.procs[pid]
	return ok
}

// Terminated returns pids passed to Terminate, in call order.
func (f *FakeProcesses) Terminated() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.terminated)
}

// Killed returns pids passed to Kill, in call order.
func (f *FakeProcesses) Killed() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.killed)
}

func normalizeImage(name string) string {
	name = strings.ToLower(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	return strings.TrimSuffix(name, ".exe")
}

func (f *FakeProcesses) ListProcessesByImageName(_ context.Context, name string) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	want := normalizeImage(name)
	var pids []int32
	for pid, p := range f.procs {
		if normalizeImage(p.Image) == want {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	return pids, nil
}

func (f *FakeProcesses) CommandLine(_ context.Context, pid int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[pid]
	if !ok {
		return "", fmt.Errorf("%w: %d", errProcessNotFound, pid)
	}
	if p.Unreadable {
		return "", fmt.Errorf("access denied: %d", pid)
	}
	return p.Cmdline, nil
}

func (f *FakeProcesses) Terminate(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	p, ok := f.procs[pid]
	if !ok {
		return fmt.Errorf("%w: %d", errProcessNotFound, pid)
	}
	if !p.IgnoreTerminate {
		f.exitLocked(p)
	}
	return nil
}

func (f *FakeProcesses) Kill(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	if p, ok := f.procs[pid]; ok && !p.IgnoreKill {
		f.exitLocked(p)
	}
	return nil
}

// Exit ends pid as if it crashed.
func (f *FakeProcesses) Exit(pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.procs[pid]; ok {
		f.exitLocked(p)
	}
}

func (f *FakeProcesses) exitLocked(p *FakeProcess) {
	delete(f.procs, p.PID)
	close(p.exited)
	if !p.Letter.Valid() || p.KeepsVolume {
		return
	}
	for _, other := range f.procs {
		if other.Letter == p.Letter {
			return
		}
	}
	f.volumes.Unmount(p.Letter)
}

func (f *FakeProcesses) exitedChan(pid int32) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.procs[pid]; ok {
		return p.exited
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// SpawnBehaviour scripts what a FakeSpawner does for one letter.
type SpawnBehaviour struct {
	// Err makes Spawn fail with a *driver.SpawnError.
	Err    error
	Output string
	// MountAfter delays the volume's appearance.
	MountAfter time.Duration
	// ExitAtOnce starts the process and ends it before it mounts.
	ExitAtOnce bool
	// NeverMount starts a process that runs but never mounts.
	NeverMount bool
	// IgnoreTerminate is copied to the spawned process.
	IgnoreTerminate bool
}

// FakeSpawner is a driver.Spawner backed by FakeProcesses. By default the
// spawned process mounts its letter at once.
type FakeSpawner struct {
	procs      *FakeProcesses
	behaviours map[drives.Letter]SpawnBehaviour
	requests   []driver.SpawnRequest
	mu         sync.Mutex
	nextPID    int32
}

func NewFakeSpawner(procs *FakeProcesses) *FakeSpawner {
	return &FakeSpawner{
		procs:      procs,
		behaviours: make(map[drives.Letter]SpawnBehaviour),
		nextPID:    4000,
	}
}

// Script sets the behaviour for spawns on l.
func (s *FakeSpawner) Script(l drives.Letter, b SpawnBehaviour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviours[l] = b
}

// Requests returns every SpawnRequest seen.
func (s *FakeSpawner) Requests() []driver.SpawnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *FakeSpawner) Spawn(_ context.Context, req driver.SpawnRequest) (driver.Handle, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	b := s.behaviours[req.Letter]
	s.nextPID++
	pid := s.nextPID
	s.mu.Unlock()

	if b.Err != nil {
		return nil, &driver.SpawnError{Err: b.Err, Output: b.Output}
	}

	s.procs.Add(FakeProcess{
		PID:             pid,
		Letter:          req.Letter,
		Cmdline:         DriverCmdline(req.Remote, req.Letter),
		IgnoreTerminate: b.IgnoreTerminate,
	})
	h := &fakeHandle{pid: pid, procs: s.procs, output: b.Output}

	switch {
	case b.ExitAtOnce:
		s.procs.Exit(pid)
	case b.NeverMount:
	case b.MountAfter > 0:
		time.AfterFunc(b.MountAfter, func() {
			if s.procs.Alive(pid) {
				s.procs.volumes.Mount(req.Letter, req.VolumeName)
			}
		})
	default:
		s.procs.volumes.Mount(req.Letter, req.VolumeName)
	}

	return h, nil
}

type fakeHandle struct {
	procs  *FakeProcesses
	output string
	pid    int32
}

func (h *fakeHandle) PID() int32 {
	return h.pid
}

func (h *fakeHandle) Exited() <-chan struct{} {
	return h.procs.exitedChan(h.pid)
}

func (h *fakeHandle) Diagnostic() string {
	return h.output
}

func (h *fakeHandle) Terminate(ctx context.Context) error {
	return h.procs.Terminate(ctx, h.pid)
}

func (h *fakeHandle) Kill(ctx context.Context) error {
	return h.procs.Kill(ctx, h.pid)
}
