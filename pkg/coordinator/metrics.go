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

package coordinator

import (
	"errors"

	"github.com/bucketdrive/bucketdrive/pkg/mounts"
	"github.com/bucketdrive/bucketdrive/pkg/teardown"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the coordinator's Prometheus collectors. All methods are
// nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// MountsTotal counts Mount calls by outcome ("connected" or a Kind).
	MountsTotal *prometheus.CounterVec
	// MountDuration observes Mount latency in seconds.
	MountDuration prometheus.Histogram
	// ReleasesTotal counts releases by outcome and stage.
	ReleasesTotal *prometheus.CounterVec
	// DetectDuration observes Detect latency in seconds.
	DetectDuration prometheus.Histogram
	// ProbeFailures counts Detect calls aborted by a failed probe.
	ProbeFailures prometheus.Counter
	// PersistFailures counts snapshot writes that failed.
	PersistFailures prometheus.Counter
	// Records tracks registry records by status.
	Records *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. With a nil
// registerer they are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MountsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bucketdrive",
			Subsystem: "mounts",
			Name:      "requests_total",
			Help:      "Mount requests by outcome",
		}, []string{"outcome"}),
		MountDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bucketdrive",
			Subsystem: "mounts",
			Name:      "duration_seconds",
			Help:      "Time from mount request to verified mount or failure",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ReleasesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bucketdrive",
			Subsystem: "teardown",
			Name:      "releases_total",
			Help:      "Letter releases by outcome and the stage that settled them",
		}, []string{"outcome", "stage"}),
		DetectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bucketdrive",
			Subsystem: "detect",
			Name:      "duration_seconds",
			Help:      "Time spent probing and reconciling",
			Buckets:   prometheus.DefBuckets,
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bucketdrive",
			Subsystem: "detect",
			Name:      "probe_failures_total",
			Help:      "Detections aborted because the process probe failed",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bucketdrive",
			Subsystem: "mounts",
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed",
		}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bucketdrive",
			Subsystem: "mounts",
			Name:      "records",
			Help:      "Registry records by status",
		}, []string{"status"}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.MountsTotal,
			m.MountDuration,
			m.ReleasesTotal,
			m.DetectDuration,
			m.ProbeFailures,
			m.PersistFailures,
			m.Records,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *Metrics) recordMount(err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "connected"
	if kind, ok := KindOf(err); ok {
		outcome = kind.String()
	} else if err != nil {
		outcome = "error"
	}
	m.MountsTotal.WithLabelValues(outcome).Inc()
	m.MountDuration.Observe(seconds)
}

func (m *Metrics) recordRelease(r teardown.Result) {
	if m == nil {
		return
	}
	m.ReleasesTotal.WithLabelValues(r.Outcome.String(), r.Stage.String()).Inc()
}

func (m *Metrics) recordDetect(err error, seconds float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.ProbeFailures.Inc()
		return
	}
	m.DetectDuration.Observe(seconds)
}

func (m *Metrics) recordPersistFailure() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) recordRecords(records []mounts.Record) {
	if m == nil {
		return
	}
	counts := map[mounts.Status]float64{
		mounts.StatusDisconnected: 0,
		mounts.StatusMounting:     0,
		mounts.StatusConnected:    0,
		mounts.StatusError:        0,
	}
	for _, rec := range records {
		counts[rec.Status]++
	}
	for status, n := range counts {
		m.Records.WithLabelValues(status.String()).Set(n)
	}
}
