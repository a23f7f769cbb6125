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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "127.0.0.1:5000", want: "127.0.0.1", ok: true},
		{in: "[::1]:5000", want: "::1", ok: true},
		{in: "[::ffff:192.168.1.4]:80", want: "192.168.1.4", ok: true},
		{in: "[fe80::1%eth0]:80", want: "fe80::1", ok: true},
		{in: "10.0.0.1", want: "10.0.0.1", ok: true},
		{in: "not-an-ip:80", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := RemoteAddr(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestAllowList(t *testing.T) {
	t.Parallel()

	al := NewAllowList([]string{"192.168.1.0/24", "10.0.0.7", "garbage", " "})

	tests := []struct {
		addr string
		want bool
	}{
		{addr: "127.0.0.1:1", want: true},
		{addr: "[::1]:1", want: true},
		{addr: "192.168.1.50:1", want: true},
		{addr: "192.168.2.50:1", want: false},
		{addr: "10.0.0.7:1", want: true},
		{addr: "10.0.0.8:1", want: false},
		{addr: "bogus", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, al.Allowed(tt.addr), tt.addr)
	}
}

func TestAllowList_EmptyIsLoopbackOnly(t *testing.T) {
	t.Parallel()

	al := NewAllowList(nil)
	assert.True(t, al.Allowed("127.0.0.1:80"))
	assert.False(t, al.Allowed("192.168.1.1:80"))
	assert.True(t, IsLoopback("[::1]:80"))
}

func TestRequireAllowed(t *testing.T) {
	t.Parallel()

	h := RequireAllowed(NewAllowList(nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api", http.NoBody)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.RemoteAddr = "203.0.113.9:40000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock)

	for i := range BurstSize {
		require.True(t, rl.Allow("127.0.0.1:1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("127.0.0.1:2"), "same client, other port")
	assert.True(t, rl.Allow("127.0.0.2:1"), "other clients keep their own bucket")

	clock.Advance(time.Minute)
	assert.True(t, rl.Allow("127.0.0.1:1"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock)
	rl.Allow("10.0.0.1:1")

	clock.Advance(time.Minute)
	rl.Allow("10.0.0.2:1")
	assert.Zero(t, rl.Sweep())

	clock.Advance(limiterMaxIdle)
	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.clients, 1)
}

func TestRateLimitHTTP(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(clockwork.NewFakeClock())
	h := RateLimitHTTP(rl)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := map[int]int{}
	for range BurstSize + 5 {
		req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
		req.RemoteAddr = "127.0.0.1:9999"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, BurstSize, codes[http.StatusOK])
	assert.Equal(t, 5, codes[http.StatusTooManyRequests])
}
