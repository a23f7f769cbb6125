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
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var mountsBucket = []byte("mounts")

// BoltStore keeps one JSON-encoded record per letter in a bbolt bucket.
// SaveMounts rewrites the bucket in a single transaction, which gives the
// same all-or-nothing guarantee as the JSON file's rename.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open mount database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mountsBucket)
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create mounts bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) LoadMounts() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(mountsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("skipping unreadable mount record")
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load mounts: %w", err)
	}
	return out, nil
}

func (s *BoltStore) SaveMounts(records []Record) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(mountsBucket) != nil {
			if err := tx.DeleteBucket(mountsBucket); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
		}
		b, err := tx.CreateBucket(mountsBucket)
		if err != nil {
			return err //nolint:wrapcheck // wrapped below
		}
		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", rec.Letter, err)
			}
			if err := b.Put([]byte(rec.Letter.String()), data); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save mounts: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close mount database: %w", err)
	}
	return nil
}
