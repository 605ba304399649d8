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
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/meshcast/pkg/fanout"
	"github.com/carverauto/meshcast/pkg/logger"
)

// RelayServer answers fanout.RelayTransport requests for connections held by
// the local hub. Requests for other connections are left to other gateways.
type RelayServer struct {
	nc     *nats.Conn
	hub    *Hub
	prefix string
	log    logger.Logger
	sub    *nats.Subscription
}

func NewRelayServer(nc *nats.Conn, hub *Hub, prefix string, log logger.Logger) *RelayServer {
	if prefix == "" {
		prefix = fanout.DefaultDeliverySubjectPrefix
	}

	return &RelayServer{nc: nc, hub: hub, prefix: prefix, log: log}
}

func (s *RelayServer) Start() error {
	sub, err := s.nc.Subscribe(fanout.DeliverySubject(s.prefix, "*"), s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to delivery requests: %w", err)
	}

	s.sub = sub

	return nil
}

func (s *RelayServer) Stop() error {
	if s.sub == nil {
		return nil
	}

	return s.sub.Drain()
}

func (s *RelayServer) handle(msg *nats.Msg) {
	id := strings.TrimPrefix(msg.Subject, s.prefix+".")

	if !s.hub.Owns(id) {
		return
	}

	reply := nats.NewMsg(msg.Reply)

	err := s.hub.Send(context.Background(), id, msg.Data)

	switch {
	case err == nil:
		reply.Header.Set(fanout.StatusHeader, fanout.StatusOK)
	case errors.Is(err, fanout.ErrGone):
		reply.Header.Set(fanout.StatusHeader, fanout.StatusGone)
	default:
		reply.Header.Set(fanout.StatusHeader, fanout.StatusError)
		reply.Data = []byte(err.Error())
	}

	if err := msg.RespondMsg(reply); err != nil {
		s.log.Warn().Err(err).Str("connection_id", id).Msg("Failed to answer delivery request")
	}
}
