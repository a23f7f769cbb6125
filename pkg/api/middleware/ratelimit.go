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

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// RequestsPerMinute is generous: a CLI loop or a tray app polling
	// letters should never hit it.
	RequestsPerMinute = 120
	BurstSize         = 30

	limiterMaxIdle      = 10 * time.Minute
	limiterSweepEvery   = 5 * time.Minute
	unknownClientBucket = "unknown"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	clock   clockwork.Clock
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	mu      syncutil.Mutex
}

func NewRateLimiter(clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		clock:   clock,
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(RequestsPerMinute) / 60.0),
		burst:   BurstSize,
	}
}

func clientKey(remoteAddr string) string {
	addr, ok := RemoteAddr(remoteAddr)
	if !ok {
		return unknownClientBucket
	}
	return addr.String()
}

// Allow spends one token for the client at remoteAddr.
func (rl *RateLimiter) Allow(remoteAddr string) bool {
	key := clientKey(remoteAddr)
	now := rl.clock.Now()

	rl.mu.Lock()
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Sweep drops clients idle for longer than limiterMaxIdle.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	n := 0
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > limiterMaxIdle {
			delete(rl.clients, key)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := rl.Sweep(); n > 0 {
				log.Debug().Int("clients", n).Msg("dropped idle rate limiters")
			}
		}
	}
}

func RateLimitHTTP(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(r.RemoteAddr) {
				log.Warn().
					Str("remote", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("http rate limit exceeded")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitWebSocket wraps a melody message handler. Rejected messages get
// a JSON-RPC error with a null id.
func RateLimitWebSocket(
	rl *RateLimiter,
	handler func(*melody.Session, []byte),
) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		if rl.Allow(session.Request.RemoteAddr) {
			handler(session, msg)
			return
		}

		log.Warn().
			Str("remote", session.Request.RemoteAddr).
			Int("msg_size", len(msg)).
			Msg("websocket rate limit exceeded")

		data, err := json.Marshal(models.ResponseErrorObject{
			JSONRPC: "2.0",
			Error: &models.ErrorObject{
				Code:    models.ErrCodeRateLimited,
				Message: "rate limit exceeded",
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal rate limit error")
			return
		}
		if err := session.Write(data); err != nil {
			log.Error().Err(err).Msg("failed to send rate limit error")
		}
	}
}
