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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// JSONStore keeps the snapshot in a single JSON file. Writes go to a temp
// file in the same directory which is then renamed over the target, so a
// crash mid-write leaves the previous snapshot intact.
type JSONStore struct {
	fs   afero.Fs
	path string
	mu   syncutil.Mutex
}

func NewJSONStore(fsys afero.Fs, path string) *JSONStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &JSONStore{fs: fsys, path: path}
}

// Path returns the snapshot file location.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) LoadMounts() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read mount snapshot: %w", err)
	}

	var doc snapshotFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse mount snapshot: %w", err)
	}
	if doc.Version > snapshotVersion {
		return nil, fmt.Errorf("mount snapshot version %d is newer than supported %d", doc.Version, snapshotVersion)
	}
	return doc.Mounts, nil
}

func (s *JSONStore) SaveMounts(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(snapshotFile{Version: snapshotVersion, Mounts: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mount snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write mount snapshot: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace mount snapshot: %w", err)
	}

	log.Debug().Int("records", len(records)).Str("path", s.path).Msg("saved mount snapshot")
	return nil
}

func (*JSONStore) Close() error {
	return nil
}
