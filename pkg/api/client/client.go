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

// Package client talks to a running service over the local JSON-RPC API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrRequestCancelled = errors.New("request cancelled")
	ErrConnectionClosed = errors.New("connection closed before a response arrived")
)

const apiPath = "/api"

// RPCError is an error object returned by the service.
type RPCError struct {
	Data    *models.ErrorData
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return e.Message
}

// Kind returns the mount failure kind carried by the error, if any.
func (e *RPCError) Kind() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Kind
}

// URL returns the websocket URL for a listen address. Wildcard hosts are
// dialled on loopback.
func URL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		host, port = "localhost", listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, port),
		Path:   apiPath,
	}
	return u.String()
}

// Call sends one request to the service at wsURL and waits for its
// response. params may be nil.
func Call(ctx context.Context, wsURL, method string, params any) (json.RawMessage, error) {
	id := uuid.New()
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer closeConn(c)

	type result struct {
		err  error
		resp responseEnvelope
	}
	done := make(chan result, 1)

	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				done <- result{err: fmt.Errorf("%w: %w", ErrConnectionClosed, err)}
				return
			}

			var m responseEnvelope
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != id {
				// notifications and other chatter
				continue
			}
			done <- result{resp: m}
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp.Error != nil {
			return nil, &RPCError{
				Code:    res.resp.Error.Code,
				Message: res.resp.Error.Message,
				Data:    res.resp.Error.Data,
			}
		}
		return res.resp.Result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, ErrRequestCancelled
	}
}

// responseEnvelope keeps the result raw so callers decode it into the
// type they expect.
type responseEnvelope struct {
	Error   *models.ErrorObject `json:"error,omitempty"`
	Result  json.RawMessage     `json:"result"`
	JSONRPC string              `json:"jsonrpc"`
	ID      uuid.UUID           `json:"id"`
}

// WaitNotification blocks until the service broadcasts a notification
// named method and returns its params.
func WaitNotification(ctx context.Context, wsURL, method string) (json.RawMessage, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer closeConn(c)

	type result struct {
		err    error
		params json.RawMessage
	}
	done := make(chan result, 1)

	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				done <- result{err: fmt.Errorf("%w: %w", ErrConnectionClosed, err)}
				return
			}
			var m models.RequestObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != nil || !strings.EqualFold(m.Method, method) {
				continue
			}
			done <- result{params: m.Params}
			return
		}
	}()

	select {
	case res := <-done:
		return res.params, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, ErrRequestCancelled
	}
}

func closeConn(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket")
	}
}

// LocalURL is the websocket URL of the service configured in cfg.
func LocalURL(cfg *config.Instance) string {
	return URL(cfg.APIListen())
}
