/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wsgateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
	"github.com/carverauto/meshcast/pkg/natsutil"
)

const readHeaderTimeout = 10 * time.Second

// Service runs the viewer websocket endpoint and the delivery relay.
type Service struct {
	cfg    *Config
	log    logger.Logger
	nc     *nats.Conn
	hub    *Hub
	relay  *RelayServer
	server *http.Server
	addr   net.Addr
}

func NewService(cfg *Config, log logger.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// Start connects to NATS, opens the registry, and starts serving.
func (s *Service) Start(ctx context.Context) error {
	nc, js, err := natsutil.Connect(natsutil.ConnectOptions{
		URL:      s.cfg.NATSURL,
		Domain:   s.cfg.Domain,
		Name:     "meshcast-fanout-gateway",
		Security: s.cfg.Security,
		Logger:   s.log,
	})
	if err != nil {
		return err
	}

	s.nc = nc

	registry, err := fanout.OpenRegistry(ctx, js, &s.cfg.Fanout)
	if err != nil {
		nc.Close()

		return err
	}

	s.hub = NewHub(registry, s.log,
		WithPingInterval(s.cfg.PingInterval.Or(DefaultPingInterval)),
		WithAllowedOrigins(s.cfg.AllowedOrigins),
	)

	s.relay = NewRelayServer(nc, s.hub, s.cfg.Fanout.DeliverySubjectPrefix, s.log)
	if err := s.relay.Start(); err != nil {
		nc.Close()

		return err
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		_ = s.relay.Stop()
		nc.Close()

		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}

	s.addr = ln.Addr()
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("WebSocket server stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr.String()).Str("path", s.cfg.Path).Msg("Fan-out gateway started")

	return nil
}

// Stop closes viewer connections and releases NATS.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if s.relay != nil {
		if err := s.relay.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Addr is the bound listen address once started.
func (s *Service) Addr() net.Addr {
	return s.addr
}
