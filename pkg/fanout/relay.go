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

package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// StatusHeader carries the outcome of a relayed delivery.
	StatusHeader = "Delivery-Status"

	StatusOK    = "ok"
	StatusGone  = "gone"
	StatusError = "error"

	DefaultDeliverySubjectPrefix = "meshcast.deliver"
	DefaultDeliveryTimeout       = 2 * time.Second
)

// ErrDeliveryFailed is returned when the owning gateway reports a send failure.
var ErrDeliveryFailed = errors.New("delivery failed")

// DeliverySubject is the request subject for connection id.
func DeliverySubject(prefix, id string) string {
	return prefix + "." + id
}

// RelayTransport delivers through NATS request/reply to whichever gateway holds
// the connection. Gateways that do not own the connection stay silent, so a
// request that times out means no gateway owns it and is reported as ErrGone.
type RelayTransport struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

func NewRelayTransport(nc *nats.Conn, prefix string, timeout time.Duration) *RelayTransport {
	if prefix == "" {
		prefix = DefaultDeliverySubjectPrefix
	}

	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}

	return &RelayTransport{nc: nc, prefix: prefix, timeout: timeout}
}

// Send delivers payload to the gateway owning id. Only the relay's own timeout
// means no gateway owns the connection; a done parent context is not ErrGone.
func (r *RelayTransport) Send(parent context.Context, id string, payload []byte) error {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	msg := nats.NewMsg(DeliverySubject(r.prefix, id))
	msg.Data = payload

	reply, err := r.nc.RequestMsgWithContext(ctx, msg)

	switch {
	case err == nil:
	case errors.Is(err, nats.ErrNoResponders):
		return fmt.Errorf("no delivery relay is running: %w", err)
	case parent.Err() != nil:
		return fmt.Errorf("relay request for %s abandoned: %w", id, parent.Err())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return fmt.Errorf("%w: no gateway answered for %s", ErrGone, id)
	default:
		return fmt.Errorf("relay request for %s failed: %w", id, err)
	}

	switch status := reply.Header.Get(StatusHeader); status {
	case StatusOK:
		return nil
	case StatusGone:
		return fmt.Errorf("%w: %s", ErrGone, id)
	default:
		return fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, id, string(reply.Data))
	}
}

var _ Transport = (*RelayTransport)(nil)
