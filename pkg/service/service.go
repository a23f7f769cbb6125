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

// Package service wires the mount coordinator to the OS, the snapshot
// store and the API, and runs the background refresh until stopped.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api"
	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/notifications"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/bucketdrive/bucketdrive/pkg/helpers"
	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/service/broker"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// exitUnmountTimeout bounds the release of every letter on shutdown when
// unmount_on_exit is set.
const exitUnmountTimeout = 60 * time.Second

// Options override the parts of the service that touch the real system.
// The zero value runs against the OS.
type Options struct {
	Platform *Platform
	Fs       afero.Fs
	Clock    clockwork.Clock
	// Registry receives the Prometheus collectors. A fresh registry with
	// the Go and process collectors is used when nil.
	Registry *prometheus.Registry
	// DataDir holds the snapshot. Defaults to helpers.DataDir().
	DataDir string
	// LogDir receives driver logs. Defaults to helpers.LogDir().
	LogDir string
	// NoAPI skips the API server.
	NoAPI bool
}

// Service holds the running components between Start and stop.
type Service struct {
	cfg      *config.Instance
	coord    *coordinator.Coordinator
	store    mounts.Store
	platform *Platform
	broker   *broker.Broker
	clock    clockwork.Clock
	refresh  chan struct{}
}

func setupEnvironment(dataDir, logDir string) error {
	if dir, ok := helpers.HasUserDir(); ok {
		log.Info().Str("dir", dir).Msg("using 'user' directory for storage")
	}
	for _, dir := range []string{dataDir, logDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func openStore(cfg *config.Instance, fs afero.Fs, dataDir string) (mounts.Store, error) {
	path := cfg.SnapshotPath(dataDir)
	switch cfg.Store() {
	case config.StoreBolt:
		log.Info().Str("path", path).Msg("opening bolt mount store")
		return mounts.OpenBoltStore(path) //nolint:wrapcheck // already names the file
	default:
		if err := fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		log.Info().Str("path", path).Msg("using json mount store")
		return mounts.NewJSONStore(fs, path), nil
	}
}

func coordinatorTimeouts(t config.MountTimeouts) coordinator.Timeouts {
	out := coordinator.Timeouts{
		SpawnVerify:      t.SpawnVerify,
		VerifyBackoff:    t.VerifyBackoff,
		MaxVerifyBackoff: t.MaxVerifyBackoff,
		VerifyAttempts:   t.VerifyAttempts,
	}
	out.Teardown.KillSettle = t.KillSettle
	out.Teardown.DetachSettle = t.DetachSettle
	out.Teardown.HintSettle = t.HintSettle
	return out
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Start brings the service up: restore the snapshot, re-adopt whatever is
// still mounted, then serve the API and keep the table in step with the
// OS. stop blocks until everything has shut down; done is closed at the
// same point.
func Start(cfg *config.Instance, opts Options) (stop func() error, done <-chan struct{}, err error) {
	_, stop, done, err = start(cfg, opts)
	return stop, done, err
}

func start(cfg *config.Instance, opts Options) (s *Service, stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	if opts.DataDir == "" {
		opts.DataDir = helpers.DataDir()
	}
	if opts.LogDir == "" {
		opts.LogDir = helpers.LogDir()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Registry == nil {
		opts.Registry = newRegistry()
	}

	if err := setupEnvironment(opts.DataDir, opts.LogDir); err != nil {
		return nil, nil, nil, err
	}

	pl := opts.Platform
	if pl == nil {
		pl, err = SystemPlatform(cfg, opts.LogDir)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	store, err := openStore(cfg, opts.Fs, opts.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}

	ns := make(chan models.Notification, 64)
	s = &Service{
		cfg:      cfg,
		store:    store,
		platform: pl,
		broker:   broker.NewBroker(ns),
		clock:    opts.Clock,
		refresh:  make(chan struct{}, 1),
	}
	s.coord = coordinator.New(coordinator.Config{
		Alphabet:      cfg.Alphabet(),
		DriverImage:   cfg.DriverImage(),
		CacheMode:     cfg.CacheMode(),
		ExtraArgs:     cfg.ExtraArgs(),
		LabelKeywords: cfg.LabelKeywords(),
		Timeouts:      coordinatorTimeouts(cfg.MountTimeouts()),
	}, coordinator.Deps{
		Volumes:  pl.Volumes,
		Detacher: pl.Detacher,
		Lister:   pl.Lister,
		Signaler: pl.Signaler,
		Spawner:  pl.Spawner,
		Store:    store,
		Notifier: notifications.NewNotifier(ns),
		Clock:    opts.Clock,
		Metrics:  coordinator.NewMetrics(opts.Registry),
	})

	log.Info().Msg("restoring mount snapshot")
	if err := s.coord.Restore(); err != nil {
		// a corrupt snapshot must not keep the service down; detection
		// rebuilds what is still mounted
		log.Error().Err(err).Msg("error restoring mount snapshot")
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Info().Msg("detecting existing mounts")
	if _, err := s.coord.Detect(ctx); err != nil {
		log.Error().Err(err).Msg("initial detection failed, will retry on refresh")
	}

	eventLog, _ := s.broker.Subscribe(32)

	var g errgroup.Group
	g.Go(func() error {
		s.broker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logEvents(eventLog)
		return nil
	})
	g.Go(func() error {
		s.refreshLoop(ctx)
		return nil
	})
	g.Go(func() error {
		s.watchVolumes(ctx)
		return nil
	})
	g.Go(func() error {
		if err := cfg.Watch(ctx, s.applyConfig); err != nil {
			log.Error().Err(err).Msg("config watcher stopped")
		}
		return nil
	})

	if !opts.NoAPI {
		log.Info().Msg("starting API service")
		apiNotifications, _ := s.broker.Subscribe(100)
		apiDone, err := api.Start(ctx, api.Deps{
			Config:        cfg,
			Coordinator:   s.coord,
			Notifications: apiNotifications,
			Gatherer:      opts.Registry,
			OnReload:      s.applyConfig,
			Clock:         opts.Clock,
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			if closeErr := store.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("error closing mount store")
			}
			return nil, nil, nil, fmt.Errorf("failed to start api: %w", err)
		}
		g.Go(func() error {
			if err := <-apiDone; err != nil {
				log.Error().Err(err).Msg("api server stopped")
			}
			return nil
		})
	}

	log.Info().Msg("service fully initialized")

	doneCh := make(chan struct{})
	var stopErr error
	go func() {
		<-ctx.Done()
		log.Info().Msg("service context cancelled, running cleanup")
		_ = g.Wait()
		stopErr = s.shutdown()
		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	stop = func() error {
		cancel()
		<-doneCh
		return stopErr
	}
	return s, stop, doneCh, nil
}

func (s *Service) shutdown() error {
	var errs []error
	if s.cfg.UnmountOnExit() {
		log.Info().Msg("unmounting all letters before exit")
		ctx, cancel := context.WithTimeout(context.Background(), exitUnmountTimeout)
		res := s.coord.UnmountAll(ctx)
		cancel()
		if err := res.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close mount store: %w", err))
	}
	return errors.Join(errs...)
}

// applyConfig pushes reloadable settings into the running coordinator.
// The alphabet, driver and store are fixed for the life of the process.
func (s *Service) applyConfig() {
	s.cfg.SetDebugLogging(s.cfg.DebugLogging())
	s.coord.SetTimeouts(coordinatorTimeouts(s.cfg.MountTimeouts()))
	if !slices.Equal(s.cfg.Alphabet().Sorted(), s.coord.Alphabet().Sorted()) {
		log.Warn().
			Str("configured", s.cfg.Alphabet().String()).
			Str("active", s.coord.Alphabet().String()).
			Msg("alphabet changed, restart to apply")
	}
	s.triggerRefresh()
}

func logEvents(ch <-chan models.Notification) {
	for n := range ch {
		ev := log.Info().Str("method", n.Method)
		if len(n.Params) > 0 {
			ev = ev.RawJSON("params", n.Params)
		}
		ev.Msg("mount event")
	}
}
