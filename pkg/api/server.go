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

// Package api serves the local JSON-RPC API over a websocket, plus health
// and Prometheus endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bucketdrive/bucketdrive/pkg/api/methods"
	apimiddleware "github.com/bucketdrive/bucketdrive/pkg/api/middleware"
	"github.com/bucketdrive/bucketdrive/pkg/api/models"
	"github.com/bucketdrive/bucketdrive/pkg/api/models/requests"
	"github.com/bucketdrive/bucketdrive/pkg/config"
	"github.com/bucketdrive/bucketdrive/pkg/coordinator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	APIPath = "/api"

	shutdownTimeout = 5 * time.Second
)

var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    models.ErrCodeParse,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    models.ErrCodeInvalidRequest,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    models.ErrCodeMethodNotFound,
		Message: "Method not found",
	}
)

var errMethodNotFound = errors.New("method not found")

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// mounts
	models.MethodMounts:           methods.HandleMounts,
	models.MethodMountsGet:        methods.HandleMountsGet,
	models.MethodMountsMount:      methods.HandleMount,
	models.MethodMountsUnmount:    methods.HandleUnmount,
	models.MethodMountsUnmountAll: methods.HandleUnmountAll,
	models.MethodMountsRemove:     methods.HandleRemove,
	models.MethodMountsDetect:     methods.HandleDetect,
	models.MethodLetters:          methods.HandleLetters,
	// settings
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
	models.MethodSettingsReload: methods.HandleSettingsReload,
	// utils
	models.MethodVersion: methods.HandleVersion,
}

// Deps are what the API serves. Gatherer and OnReload may be nil.
type Deps struct {
	Config        *config.Instance
	Coordinator   *coordinator.Coordinator
	Notifications <-chan models.Notification
	Gatherer      prometheus.Gatherer
	OnReload      func()
	Clock         clockwork.Clock
}

func handleRequest(env requests.RequestEnv, req models.RequestObject) (any, error) {
	log.Debug().Str("method", req.Method).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMethodNotFound, req.Method)
	}

	env.ID = *req.ID
	env.Params = req.Params

	return fn(env)
}

func writeJSON(session *melody.Session, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling response: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func sendResponse(session *melody.Session, id uuid.UUID, result any) error {
	return writeJSON(session, models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func sendError(session *melody.Session, id uuid.UUID, errObj models.ErrorObject) error {
	log.Debug().Int("code", errObj.Code).Str("message", errObj.Message).Msg("sending error")
	return writeJSON(session, models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
}

func broadcastNotifications(
	ctx context.Context,
	session *melody.Melody,
	notifications <-chan models.Notification,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(models.RequestObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification request")
				continue
			}
			if err := session.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func handleWSMessage(ctx context.Context, deps Deps) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		// heartbeat
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Warn().Err(err).Msg("data not valid json")
			if err := sendError(session, uuid.Nil, JSONRPCErrorParseError); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		if req.JSONRPC != "2.0" || req.Method == "" {
			log.Warn().Str("jsonrpc", req.JSONRPC).Msg("invalid request object")
			id := uuid.Nil
			if req.ID != nil {
				id = *req.ID
			}
			if err := sendError(session, id, JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		if req.ID == nil {
			log.Debug().Str("method", req.Method).Msg("received notification, ignoring")
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
		defer cancel()

		resp, err := handleRequest(requests.RequestEnv{
			Context:     reqCtx,
			Config:      deps.Config,
			Coordinator: deps.Coordinator,
			OnReload:    deps.OnReload,
			IsLocal:     apimiddleware.IsLoopback(session.Request.RemoteAddr),
		}, req)
		switch {
		case errors.Is(err, errMethodNotFound):
			err = sendError(session, *req.ID, JSONRPCErrorMethodNotFound)
		case err != nil:
			log.Debug().Err(err).Str("method", req.Method).Msg("request failed")
			err = sendError(session, *req.ID, methods.ErrorObject(err))
		default:
			err = sendResponse(session, *req.ID, resp)
		}
		if err != nil {
			log.Error().Err(err).Msg("error sending response")
		}
	}
}

// originAllowed admits non-browser clients (no Origin header) and origins
// matching one of the configured patterns, e.g. "http://localhost:*".
func originAllowed(patterns []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, p := range patterns {
			if ok, err := path.Match(p, origin); err == nil && ok {
				return true
			}
		}
		log.Warn().Str("origin", origin).Msg("rejected websocket origin")
		return false
	}
}

// NewRouter builds the HTTP handler. Background work it starts (the
// notification fan-out and the limiter sweep) stops when ctx is done.
func NewRouter(ctx context.Context, deps Deps) http.Handler {
	r := chi.NewRouter()

	limiter := apimiddleware.NewRateLimiter(deps.Clock)
	go limiter.Run(ctx)

	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.RequireAllowed(apimiddleware.NewAllowList(deps.Config.APIAllowedIPs())))
	r.Use(apimiddleware.RateLimitHTTP(limiter))
	r.Use(middleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.APIAllowedOrigins(),
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept"},
	}))

	session := melody.New()
	session.Upgrader.CheckOrigin = originAllowed(deps.Config.APIAllowedOrigins())
	session.HandleMessage(apimiddleware.RateLimitWebSocket(limiter, handleWSMessage(ctx, deps)))
	if deps.Notifications != nil {
		go broadcastNotifications(ctx, session, deps.Notifications)
	}
	go func() {
		<-ctx.Done()
		if err := session.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
			log.Warn().Err(err).Msg("closing websocket sessions")
		}
	}()

	r.Get(APIPath, func(w http.ResponseWriter, r *http.Request) {
		if err := session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves the API on the configured address until ctx is done. The
// listener is bound before Start returns, so a port conflict is reported to
// the caller instead of being logged from a goroutine.
func Start(ctx context.Context, deps Deps) (<-chan error, error) {
	addr := deps.Config.APIListen()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           NewRouter(ctx, deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api server shutdown")
		}
	}()
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
		close(done)
	}()

	return done, nil
}
