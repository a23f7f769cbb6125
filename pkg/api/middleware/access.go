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

// Package middleware holds the HTTP and websocket guards for the API.
package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// RemoteAddr parses the address part of an "ip:port" RemoteAddr. Zones and
// IPv4-mapped IPv6 forms are normalised.
func RemoteAddr(remoteAddr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.WithZone("").Unmap(), true
}

// IsLoopback reports whether remoteAddr is a loopback client.
func IsLoopback(remoteAddr string) bool {
	addr, ok := RemoteAddr(remoteAddr)
	return ok && addr.IsLoopback()
}

// AllowList admits loopback clients plus any address inside its prefixes.
// Mounting drives on someone's machine is not something a LAN peer should
// do by default, so an empty list means loopback only.
type AllowList struct {
	prefixes []netip.Prefix
}

// NewAllowList accepts single addresses and CIDR prefixes. Entries that
// parse as neither are logged and skipped.
func NewAllowList(entries []string) *AllowList {
	al := &AllowList{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			al.prefixes = append(al.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			a = a.Unmap()
			al.prefixes = append(al.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		log.Warn().Str("entry", e).Msg("invalid address in api allowed_ips, skipping")
	}
	return al
}

func (al *AllowList) Allowed(remoteAddr string) bool {
	addr, ok := RemoteAddr(remoteAddr)
	if !ok {
		return false
	}
	if addr.IsLoopback() {
		return true
	}
	for _, p := range al.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RequireAllowed rejects requests, websocket upgrades included, from
// clients outside the list.
func RequireAllowed(al *AllowList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !al.Allowed(r.RemoteAddr) {
				log.Debug().
					Str("remote", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("rejected request from address outside allow list")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
