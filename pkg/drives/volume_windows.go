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
	"context"
	"fmt"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/command"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

// FSCTL_DISMOUNT_VOLUME, not exported by x/sys/windows.
const fsctlDismountVolume = 0x00090020

// System is the Windows implementation of VolumeInspector and Detacher.
type System struct {
	cmd command.Executor
}

// NewSystem returns the OS volume layer. cmd runs mountvol and net use
// during forced detach.
func NewSystem(cmd command.Executor) *System {
	if cmd == nil {
		cmd = &command.RealExecutor{}
	}
	return &System{cmd: cmd}
}

func driveType(l Letter) uint32 {
	root, err := windows.UTF16PtrFromString(l.Root())
	if err != nil {
		return windows.DRIVE_UNKNOWN
	}
	return windows.GetDriveType(root)
}

func (*System) VolumeExists(l Letter) bool {
	if !l.Valid() {
		return false
	}
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		log.Debug().Err(err).Msg("GetLogicalDrives failed, falling back to drive type")
	} else if mask&(1<<uint(l.Index())) == 0 {
		return false
	}
	switch driveType(l) {
	case windows.DRIVE_NO_ROOT_DIR, windows.DRIVE_UNKNOWN:
		return false
	default:
		return true
	}
}

func (*System) VolumeLabel(l Letter) (string, error) {
	root, err := windows.UTF16PtrFromString(l.Root())
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}

	var volumeNameBuf [windows.MAX_PATH + 1]uint16
	var fileSystemNameBuf [windows.MAX_PATH + 1]uint16
	var serial, maxComponentLength, flags uint32

	err = windows.GetVolumeInformation(
		root,
		&volumeNameBuf[0],
		uint32(len(volumeNameBuf)),
		&serial,
		&maxComponentLength,
		&flags,
		&fileSystemNameBuf[0],
		uint32(len(fileSystemNameBuf)),
	)
	if err != nil {
		return "", fmt.Errorf("GetVolumeInformation %s: %w", l.Root(), err)
	}

	return windows.UTF16ToString(volumeNameBuf[:]), nil
}

func (*System) IsOpticalMedia(l Letter) bool {
	return driveType(l) == windows.DRIVE_CDROM
}

// ForceDetach tries, in order: removing the DOS device definition, mountvol
// /D and net use /delete. Any accepted request counts; verification is the
// caller's job.
func (s *System) ForceDetach(ctx context.Context, l Letter) bool {
	accepted := false

	device, err := windows.UTF16PtrFromString(l.Device())
	if err == nil {
		err = windows.DefineDosDevice(windows.DDD_REMOVE_DEFINITION, device, nil)
		if err != nil {
			log.Debug().Err(err).Str("letter", l.String()).Msg("DefineDosDevice remove failed")
		} else {
			log.Debug().Str("letter", l.String()).Msg("removed dos device definition")
			accepted = true
		}
	}

	if err := s.cmd.Run(ctx, "mountvol", l.Device(), "/D"); err != nil {
		log.Debug().Err(err).Str("letter", l.String()).Msg("mountvol /D failed")
	} else {
		accepted = true
	}

	if err := s.cmd.Run(ctx, "net", "use", l.Device(), "/delete", "/y"); err != nil {
		log.Debug().Err(err).Str("letter", l.String()).Msg("net use /delete failed")
	} else {
		accepted = true
	}

	return accepted
}

// ReleaseHint opens the volume device and asks the filesystem to dismount.
// Handles held by other processes are invalidated; failures are expected
// when the driver has already gone.
func (*System) ReleaseHint(_ context.Context, l Letter) error {
	path, err := windows.UTF16PtrFromString(`\\.\` + l.Device())
	if err != nil {
		return fmt.Errorf("invalid volume path: %w", err)
	}

	handle, err := windows.CreateFile(
		path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return fmt.Errorf("open volume %s: %w", l.Device(), err)
	}
	defer func() { _ = windows.CloseHandle(handle) }()

	if err := windows.FlushFileBuffers(handle); err != nil {
		log.Debug().Err(err).Str("letter", l.String()).Msg("flush before dismount failed")
	}

	var returned uint32
	err = windows.DeviceIoControl(handle, fsctlDismountVolume, nil, 0, nil, 0, &returned, nil)
	if err != nil {
		return fmt.Errorf("dismount %s: %w", l.Device(), err)
	}
	return nil
}
